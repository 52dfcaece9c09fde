package usecase

import (
	"context"
	"fmt"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	"FlareCast/internal/service/registry"
	"FlareCast/internal/services/scoring"
	applogger "FlareCast/pkg/logger"
)

// Outcome names the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomeCompleted means a prediction was computed and persisted.
	OutcomeCompleted Outcome = "completed"
	// OutcomeNoNewData means the feed returned nothing new; no writes occurred.
	OutcomeNoNewData Outcome = "no_new_data"
	// OutcomeNoModelInput means observations were ingested but the model
	// window came back empty, so no prediction was produced.
	OutcomeNoModelInput Outcome = "no_model_input"
)

// RunResult summarizes a single pipeline run.
type RunResult struct {
	Outcome     Outcome
	Fetched     int
	WindowSize  int
	Prediction  *models.Prediction
	CompletedAt time.Time
}

// PipelineOption configures PredictionPipeline.
type PipelineOption func(*PredictionPipeline)

// PredictionPipeline orchestrates one ingestion-and-prediction run:
// determine the fetch window from stored state, pull new flux data, persist
// it, re-read the model window, score, persist the prediction. One trigger
// equals one run; re-runs are safe because both stores upsert by timestamp.
//
// There is no mutual exclusion between concurrent runs. Overlapping runs
// write identical rows for identical timestamps and converge to the same
// stored state.
type PredictionPipeline struct {
	obs    domrepo.ObservationStore
	preds  domrepo.PredictionStore
	feed   domrepo.FeedSource
	scorer scoring.Scorer
	loader registry.Loader
	alerts []domrepo.AlertPublisher

	metrics domrepo.Metrics
	l       *applogger.Logger

	retrieval     time.Duration
	buffer        time.Duration
	modelLookback time.Duration

	now func() time.Time
}

// NewPredictionPipeline creates the orchestrator. Hour windows come from
// configuration: retrievalHours bounds external backfill, bufferHours is
// re-fetched behind the newest stored observation to tolerate feed latency,
// modelLookbackHours bounds the scoring window.
func NewPredictionPipeline(
	obs domrepo.ObservationStore,
	preds domrepo.PredictionStore,
	feed domrepo.FeedSource,
	scorer scoring.Scorer,
	loader registry.Loader,
	metrics domrepo.Metrics,
	retrievalHours, bufferHours, modelLookbackHours int,
	opts ...PipelineOption,
) *PredictionPipeline {
	p := &PredictionPipeline{
		obs:           obs,
		preds:         preds,
		feed:          feed,
		scorer:        scorer,
		loader:        loader,
		metrics:       metrics,
		retrieval:     time.Duration(retrievalHours) * time.Hour,
		buffer:        time.Duration(bufferHours) * time.Hour,
		modelLookback: time.Duration(modelLookbackHours) * time.Hour,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithAlertPublisher attaches a publisher notified after each completed run.
func WithAlertPublisher(pub domrepo.AlertPublisher) PipelineOption {
	return func(p *PredictionPipeline) {
		p.alerts = append(p.alerts, pub)
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *PredictionPipeline) {
		p.l = l
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *PredictionPipeline) {
		p.now = now
	}
}

// Run executes one full pipeline pass. Store and feed failures abort the
// run; an empty feed result or an empty model window terminate it early as
// a successful no-op.
func (p *PredictionPipeline) Run(ctx context.Context) (*RunResult, error) {
	started := p.now().UTC()
	res, err := p.run(ctx, started)
	if p.metrics != nil {
		outcome := "error"
		if err == nil {
			outcome = string(res.Outcome)
		}
		p.metrics.RecordRun(outcome, p.now().Sub(started))
	}
	return res, err
}

func (p *PredictionPipeline) run(ctx context.Context, now time.Time) (*RunResult, error) {
	// 1. Determine the fetch window from the newest stored observation.
	latest, err := p.obs.Latest(ctx)
	if err != nil {
		p.recordError("store")
		return nil, fmt.Errorf("determine fetch window: %w", err)
	}
	fetchStart := p.fetchStart(latest, now)
	p.logInfo("pipeline started",
		applogger.Time("fetch_start", fetchStart),
		applogger.Any("cold_start", latest == nil),
	)

	// 2. Pull new flux data.
	fetched, err := p.feed.Fetch(ctx, fetchStart)
	if err != nil {
		p.recordError("feed")
		return nil, fmt.Errorf("fetch flux data: %w", err)
	}
	if len(fetched) == 0 {
		p.logInfo("no new flux data fetched, nothing to do")
		return &RunResult{Outcome: OutcomeNoNewData, CompletedAt: p.now().UTC()}, nil
	}

	// 3. Persist observations. The buffer makes re-fetching already stored
	// timestamps routine; upsert keeps the table duplicate-free.
	if err := p.obs.Upsert(ctx, fetched); err != nil {
		p.recordError("store")
		return nil, fmt.Errorf("persist observations: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordObservations(len(fetched), fetched[len(fetched)-1].Flux)
	}
	p.logInfo("observations persisted", applogger.Int("count", len(fetched)))

	// 4. Re-read the model window. Distinct from the fetch window: how far
	// back we pull new data is independent of how much history the model
	// consumes.
	window, err := p.obs.RangeFrom(ctx, now.Add(-p.modelLookback))
	if err != nil {
		p.recordError("store")
		return nil, fmt.Errorf("load model window: %w", err)
	}
	if len(window) == 0 {
		p.logInfo("model window empty after lookback filtering, skipping prediction")
		return &RunResult{
			Outcome:     OutcomeNoModelInput,
			Fetched:     len(fetched),
			CompletedAt: p.now().UTC(),
		}, nil
	}

	// 5. Load the current production model.
	model, err := p.loader.Load(ctx)
	if err != nil {
		p.recordError("registry")
		return nil, fmt.Errorf("load model: %w", err)
	}

	// 6. Score.
	prediction, err := p.scorer.Score(model, window)
	if err != nil {
		p.recordError("scoring")
		return nil, fmt.Errorf("score window: %w", err)
	}

	// 7. Persist the prediction, keyed by its own timestamp.
	if err := p.preds.Upsert(ctx, []models.Prediction{prediction}); err != nil {
		p.recordError("store")
		return nil, fmt.Errorf("persist prediction: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordPrediction(prediction.MClassProbability)
	}
	p.logInfo("prediction persisted",
		applogger.Time("ts", prediction.Timestamp),
		applogger.Float64("probability", prediction.MClassProbability),
		applogger.String("risk", string(prediction.RiskLevel)),
		applogger.String("model_version", prediction.ModelVersion),
	)

	// Downstream notifications are best-effort: the run already committed.
	for _, pub := range p.alerts {
		if err := pub.PublishPrediction(ctx, prediction); err != nil {
			p.recordError("alert")
			p.logWarn("prediction alert publish failed", applogger.Error(err))
		}
	}

	return &RunResult{
		Outcome:     OutcomeCompleted,
		Fetched:     len(fetched),
		WindowSize:  len(window),
		Prediction:  &prediction,
		CompletedAt: p.now().UTC(),
	}, nil
}

// fetchStart derives the lower bound for the feed call. Cold start anchors
// at now-retrieval; a stale latest observation is clamped to the same bound
// so backfill never exceeds the retrieval window. The buffer is subtracted
// last and intentionally overlaps stored data.
func (p *PredictionPipeline) fetchStart(latest *models.Observation, now time.Time) time.Time {
	bound := now.Add(-p.retrieval)
	start := bound
	if latest != nil && latest.Timestamp.After(bound) {
		start = latest.Timestamp
	}
	return start.Add(-p.buffer)
}

func (p *PredictionPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func (p *PredictionPipeline) logInfo(msg string, fields ...applogger.Field) {
	if p.l != nil {
		p.l.Info(msg, fields...)
	}
}

func (p *PredictionPipeline) logWarn(msg string, fields ...applogger.Field) {
	if p.l != nil {
		p.l.Warn(msg, fields...)
	}
}
