package scoring

import (
	"fmt"
	"sort"
	"time"

	"FlareCast/internal/domain/models"
	"FlareCast/internal/service/registry"
)

// Flux thresholds separating the risk classes, in W/m^2. 1e-4 is the
// lower bound of an X-class flare, 1e-6 of a C-class.
const (
	highRiskThreshold   = 1e-4
	mediumRiskThreshold = 1e-6
)

// Scorer maps a window of observations and a model handle to a prediction.
// Implementations must not assume the window is ordered.
type Scorer interface {
	Score(model registry.ModelHandle, obs []models.Observation) (models.Prediction, error)
}

// MeanThresholdScorer is the placeholder scorer used until the trained
// model lands: it classifies risk from the mean flux over the window and
// reports the ratio of that mean to the latest observation as the M-class
// probability, clamped into [0,1].
type MeanThresholdScorer struct {
	now func() time.Time
}

func NewMeanThresholdScorer() *MeanThresholdScorer {
	return &MeanThresholdScorer{now: time.Now}
}

// Score computes a prediction for the given window. The window must be
// non-empty; the pipeline enforces that before calling.
func (s *MeanThresholdScorer) Score(model registry.ModelHandle, obs []models.Observation) (models.Prediction, error) {
	if len(obs) == 0 {
		return models.Prediction{}, fmt.Errorf("scoring window is empty")
	}

	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var sum float64
	for _, o := range sorted {
		sum += o.Flux
	}
	mean := sum / float64(len(sorted))

	risk := models.RiskLow
	switch {
	case mean > highRiskThreshold:
		risk = models.RiskHigh
	case mean > mediumRiskThreshold:
		risk = models.RiskMedium
	}

	latest := sorted[len(sorted)-1].Flux
	probability := 0.0
	if latest != 0 {
		probability = clamp01(mean / latest)
	}

	return models.Prediction{
		Timestamp:         s.now().UTC(),
		MClassProbability: probability,
		RiskLevel:         risk,
		ModelVersion:      model.Version,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Scorer = (*MeanThresholdScorer)(nil)
