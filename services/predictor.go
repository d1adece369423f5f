package services

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"luminastay/metrics"
	"luminastay/ml"
	"luminastay/models"
	"luminastay/storage"
	"luminastay/utils"
)

// ModelState is the lifecycle state of the serving model.
type ModelState string

const (
	ModelUnloaded ModelState = "unloaded"
	ModelLoaded   ModelState = "loaded"
	ModelFailed   ModelState = "failed"
)

// ModelStatus is an immutable snapshot of the handle.
type ModelStatus struct {
	State    ModelState
	Artifact *ml.Artifact
	Reason   string
	LoadedAt time.Time
}

// Predictor serves price estimates from the current artifact. Predictions
// read one snapshot through an atomic pointer and never take a lock, so a
// reload is a single pointer swap and in-flight calls keep the artifact they
// started with.
type Predictor struct {
	status  atomic.Pointer[ModelStatus]
	logger  *utils.Logger
	metrics *metrics.Registry
}

// NewPredictor returns a predictor in the unloaded state. metrics may be nil.
func NewPredictor(logger *utils.Logger, reg *metrics.Registry) *Predictor {
	p := &Predictor{logger: logger, metrics: reg}
	p.status.Store(&ModelStatus{State: ModelUnloaded})
	return p
}

// Status returns the current snapshot.
func (p *Predictor) Status() *ModelStatus {
	return p.status.Load()
}

// Ready reports whether a prediction can be served right now.
func (p *Predictor) Ready() bool {
	return p.Status().State == ModelLoaded
}

// Swap installs an already validated artifact.
func (p *Predictor) Swap(a *ml.Artifact) {
	p.status.Store(&ModelStatus{State: ModelLoaded, Artifact: a, LoadedAt: time.Now()})
	if p.metrics != nil {
		p.metrics.ModelLoaded.Set(1)
	}
}

// Load reads the artifact at path. On failure the handle moves to Failed,
// unless an artifact is already being served, in which case that artifact
// stays in place and the error is returned.
func (p *Predictor) Load(path string) error {
	a, err := storage.LoadArtifact(path)
	if err != nil {
		p.observeReload("error")
		reason := err.Error()
		if errors.Is(err, storage.ErrArtifactNotFound) {
			reason = "artifact not found at " + path
		}
		failed := &ModelStatus{State: ModelFailed, Reason: reason}

		// A concurrent Load or Swap may install a model between the read and
		// the store; never overwrite a loaded model with a failure.
		for {
			current := p.status.Load()
			if current.State == ModelLoaded {
				p.logger.Warn("[predictor] Reload from %s failed, keeping model %s: %v", path, current.Artifact.ID, err)
				return err
			}
			if p.status.CompareAndSwap(current, failed) {
				break
			}
		}
		if p.metrics != nil {
			p.metrics.ModelLoaded.Set(0)
		}
		p.logger.Warn("[predictor] No model loaded, predictions will fail: %s", reason)
		return err
	}

	p.Swap(a)
	p.observeReload("ok")
	p.logger.Info("[predictor] Model %s loaded (MAE %.2f MAD, R2 %.4f)", a.ID, a.Metrics.MAE, a.Metrics.R2)
	return nil
}

// Predict estimates the price of one listing in MAD, rounded to two
// decimals. It does not validate domain invariants; unknown categories
// contribute nothing to the encoding.
func (p *Predictor) Predict(f models.Features) (float64, error) {
	start := time.Now()
	status := p.Status()
	if status.State != ModelLoaded {
		p.observe("unavailable", start)
		if status.Reason != "" {
			return 0, fmt.Errorf("%w: %s", models.ErrModelUnavailable, status.Reason)
		}
		return 0, models.ErrModelUnavailable
	}

	price, err := status.Artifact.Predict(f)
	if err != nil {
		p.observe("invalid", start)
		return 0, err
	}
	p.observe("ok", start)
	return price, nil
}

func (p *Predictor) observe(outcome string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.Predictions.WithLabelValues(outcome).Inc()
	p.metrics.PredictionLatency.Observe(time.Since(start).Seconds())
}

func (p *Predictor) observeReload(result string) {
	if p.metrics != nil {
		p.metrics.ModelReloads.WithLabelValues(result).Inc()
	}
}
