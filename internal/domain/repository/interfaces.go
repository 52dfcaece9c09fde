package repository

import (
	"context"
	"time"

	"FlareCast/internal/domain/models"
)

// ObservationStore persists flux observations keyed by timestamp.
type ObservationStore interface {
	// Latest returns the most recent observation, or (nil, nil) when the
	// store is empty.
	Latest(ctx context.Context) (*models.Observation, error)
	// RangeFrom returns all observations with timestamp >= start.
	RangeFrom(ctx context.Context, start time.Time) ([]models.Observation, error)
	// Upsert writes each observation, replacing any row sharing its timestamp.
	Upsert(ctx context.Context, obs []models.Observation) error
}

// PredictionStore persists flare predictions keyed by timestamp.
type PredictionStore interface {
	Latest(ctx context.Context) (*models.Prediction, error)
	RangeFrom(ctx context.Context, start time.Time) ([]models.Prediction, error)
	Upsert(ctx context.Context, preds []models.Prediction) error
}

// FeedSource fetches observations from the external flux feed. All returned
// records have timestamp >= start. An empty result is a valid success.
type FeedSource interface {
	Fetch(ctx context.Context, start time.Time) ([]models.Observation, error)
}

// AlertPublisher pushes completed predictions to downstream consumers.
// Publish failures must not fail the pipeline run that produced them.
type AlertPublisher interface {
	PublishPrediction(ctx context.Context, p models.Prediction) error
	Close() error
}

// Metrics records pipeline and ingestion measurements.
type Metrics interface {
	RecordRun(outcome string, duration time.Duration)
	RecordError(kind string)
	RecordObservations(count int, latestFlux float64)
	RecordPrediction(probability float64)
}
