package ml

import (
	"fmt"
	"math"
	"time"

	"luminastay/models"
)

// FormatVersion is bumped whenever the persisted layout changes.
const FormatVersion = 1

// Metrics are computed on the held-out partition at training time.
type Metrics struct {
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	Rejected  int     `json:"rejected_rows"`
}

// Artifact bundles the frozen encoding scheme with the fitted forest.
// It is never modified after Train or Decode returns it.
type Artifact struct {
	FormatVersion int
	ID            string
	CreatedAt     time.Time
	Scheme        *Scheme
	Forest        *Forest
	Metrics       Metrics
}

// Validate checks that a decoded artifact is complete and consistent, and
// rebuilds the scheme's lookup index.
func (a *Artifact) Validate() error {
	if a.FormatVersion != FormatVersion {
		return fmt.Errorf("artifact: unsupported format version %d (want %d)", a.FormatVersion, FormatVersion)
	}
	if a.Scheme == nil || a.Forest == nil || len(a.Forest.Trees) == 0 {
		return fmt.Errorf("artifact: %s is incomplete", a.ID)
	}
	if len(a.Scheme.Categories) != len(CategoricalFields) {
		return fmt.Errorf("artifact: scheme has %d categorical fields, want %d", len(a.Scheme.Categories), len(CategoricalFields))
	}
	if a.Scheme.Width() != a.Forest.Width {
		return fmt.Errorf("artifact: scheme width %d does not match forest width %d", a.Scheme.Width(), a.Forest.Width)
	}
	for i, t := range a.Forest.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("artifact: tree %d is empty", i)
		}
	}
	a.Scheme.prepare()
	return nil
}

// Predict encodes f with the frozen scheme and returns the forest estimate
// rounded to two decimals.
func (a *Artifact) Predict(f models.Features) (float64, error) {
	vec, err := a.Scheme.Transform(f)
	if err != nil {
		return 0, err
	}
	return Round2(a.Forest.Predict(vec)), nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
