package scoring

import (
	"testing"
	"time"

	"FlareCast/internal/domain/models"
	"FlareCast/internal/service/registry"
)

var handle = registry.ModelHandle{Version: "1.0.0"}

func window(fluxes ...float64) []models.Observation {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]models.Observation, 0, len(fluxes))
	for i, f := range fluxes {
		obs = append(obs, models.Observation{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Flux:      f,
		})
	}
	return obs
}

func TestRiskClassification(t *testing.T) {
	// Synthetic windows with means 5e-5, 5e-7, 5e-8.
	for _, tc := range []struct {
		name string
		obs  []models.Observation
		want models.RiskLevel
	}{
		{"mean 5e-5 is high", window(4e-5, 6e-5), models.RiskHigh},
		{"mean 5e-7 is medium", window(4e-7, 6e-7), models.RiskMedium},
		{"mean 5e-8 is low", window(4e-8, 6e-8), models.RiskLow},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewMeanThresholdScorer().Score(handle, tc.obs)
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if p.RiskLevel != tc.want {
				t.Fatalf("risk = %s, want %s", p.RiskLevel, tc.want)
			}
		})
	}
}

func TestProbabilityBounds(t *testing.T) {
	cases := []struct {
		name string
		obs  []models.Observation
	}{
		{"rising flux", window(1e-7, 2e-7, 4e-7)},
		{"sharp drop", window(1e-5, 1e-5, 1e-8)}, // mean far above latest
		{"flat", window(3e-7, 3e-7, 3e-7)},
		{"single point", window(2e-6)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewMeanThresholdScorer().Score(handle, tc.obs)
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if p.MClassProbability < 0 || p.MClassProbability > 1 {
				t.Fatalf("probability out of bounds: %v", p.MClassProbability)
			}
		})
	}
}

func TestProbabilityZeroLatestFlux(t *testing.T) {
	p, err := NewMeanThresholdScorer().Score(handle, window(1e-7, 0))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p.MClassProbability != 0 {
		t.Fatalf("expected 0 probability for zero latest flux, got %v", p.MClassProbability)
	}
}

func TestScoreIgnoresInputOrder(t *testing.T) {
	s := NewMeanThresholdScorer()
	asc := window(1e-7, 2e-7, 9e-7)
	desc := []models.Observation{asc[2], asc[0], asc[1]}

	pa, err := s.Score(handle, asc)
	if err != nil {
		t.Fatalf("score asc: %v", err)
	}
	pd, err := s.Score(handle, desc)
	if err != nil {
		t.Fatalf("score desc: %v", err)
	}
	if pa.MClassProbability != pd.MClassProbability || pa.RiskLevel != pd.RiskLevel {
		t.Fatalf("order-dependent result: %+v vs %+v", pa, pd)
	}
}

func TestScoreCarriesModelVersion(t *testing.T) {
	p, err := NewMeanThresholdScorer().Score(registry.ModelHandle{Version: "2.3.1"}, window(1e-7))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p.ModelVersion != "2.3.1" {
		t.Fatalf("model version = %s", p.ModelVersion)
	}
}

func TestScoreEmptyWindowErrors(t *testing.T) {
	if _, err := NewMeanThresholdScorer().Score(handle, nil); err == nil {
		t.Fatalf("expected error for empty window")
	}
}
