package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"luminastay/models"
	"luminastay/utils"
)

// TrainConfig holds the split and forest parameters.
type TrainConfig struct {
	TestFraction float64
	SplitSeed    uint64
	Forest       ForestConfig
}

// DefaultTrainConfig mirrors the production training run.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestFraction: 0.2,
		SplitSeed:    42,
		Forest: ForestConfig{
			Trees:          100,
			Seed:           42,
			MinSamplesLeaf: 1,
		},
	}
}

// Trainer fits and evaluates the price model.
type Trainer struct {
	cfg    TrainConfig
	logger *utils.Logger
	now    func() time.Time
}

// NewTrainer creates a Trainer.
func NewTrainer(cfg TrainConfig, logger *utils.Logger) *Trainer {
	return &Trainer{cfg: cfg, logger: logger, now: time.Now}
}

// Train splits the dataset, fits the encoding scheme and the forest on the
// training partition, and evaluates on the held-out partition.
func (t *Trainer) Train(listings []*models.Listing) (*Artifact, error) {
	if t.cfg.TestFraction <= 0 || t.cfg.TestFraction >= 1 {
		return nil, fmt.Errorf("%w: test fraction %.2f outside (0, 1)", models.ErrTrainingFailure, t.cfg.TestFraction)
	}

	train, test := t.split(listings)
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("%w: %d listings give %d training and %d held-out rows",
			models.ErrTrainingFailure, len(listings), len(train), len(test))
	}

	features := make([]models.Features, len(train))
	for i, l := range train {
		features[i] = l.Features
	}
	scheme := FitScheme(features)

	xTrain, yTrain, rejectedTrain := EncodeBatch(scheme, train)
	xTest, yTest, rejectedTest := EncodeBatch(scheme, test)
	for _, err := range append(rejectedTrain, rejectedTest...) {
		t.logger.Warn("[trainer] Excluding record: %v", err)
	}
	if len(xTrain) == 0 || len(xTest) == 0 {
		return nil, fmt.Errorf("%w: no encodable rows left (train %d, held-out %d)",
			models.ErrTrainingFailure, len(xTrain), len(xTest))
	}

	t.logger.Info("[trainer] Fitting %d trees on %d rows x %d features",
		t.cfg.Forest.Trees, len(xTrain), scheme.Width())
	start := t.now()
	forest, err := FitForest(xTrain, yTrain, t.cfg.Forest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTrainingFailure, err)
	}
	t.logger.Info("[trainer] Forest fitted in %v", t.now().Sub(start).Round(time.Millisecond))

	metrics, err := evaluate(forest, xTest, yTest)
	if err != nil {
		return nil, err
	}
	metrics.TrainRows = len(xTrain)
	metrics.TestRows = len(xTest)
	metrics.Rejected = len(rejectedTrain) + len(rejectedTest)

	t.logger.Info("[trainer] Mean Absolute Error: %.2f MAD", metrics.MAE)
	t.logger.Info("[trainer] R2 Score: %.4f", metrics.R2)
	t.logTopFeatures(scheme, forest, 5)

	return &Artifact{
		FormatVersion: FormatVersion,
		ID:            uuid.NewString(),
		CreatedAt:     t.now().UTC(),
		Scheme:        scheme,
		Forest:        forest,
		Metrics:       metrics,
	}, nil
}

// split shuffles the indices with the split seed and holds out the first
// ceil(n * TestFraction) of them.
func (t *Trainer) split(listings []*models.Listing) (train, test []*models.Listing) {
	n := len(listings)
	if n == 0 {
		return nil, nil
	}
	perm := rand.New(rand.NewPCG(t.cfg.SplitSeed, 0)).Perm(n)
	nTest := int(math.Ceil(float64(n) * t.cfg.TestFraction))

	for i, p := range perm {
		if i < nTest {
			test = append(test, listings[p])
		} else {
			train = append(train, listings[p])
		}
	}
	return train, test
}

func evaluate(forest *Forest, x [][]float64, y []float64) (Metrics, error) {
	preds := make([]float64, len(x))
	var absErr float64
	for i, row := range x {
		preds[i] = forest.Predict(row)
		absErr += math.Abs(preds[i] - y[i])
	}

	r2 := stat.RSquaredFrom(preds, y, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return Metrics{}, fmt.Errorf("%w: R2 undefined on %d held-out rows", models.ErrTrainingFailure, len(y))
	}
	return Metrics{MAE: absErr / float64(len(y)), R2: r2}, nil
}

func (t *Trainer) logTopFeatures(scheme *Scheme, forest *Forest, k int) {
	names := scheme.FeatureNames()
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return forest.Importances[order[a]] > forest.Importances[order[b]]
	})
	for i := 0; i < k && i < len(order); i++ {
		t.logger.Debug("[trainer] importance #%d %-28s %.4f", i+1, names[order[i]], forest.Importances[order[i]])
	}
}
