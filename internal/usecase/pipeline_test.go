package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	"FlareCast/internal/service/registry"
	"FlareCast/internal/services/scoring"
)

// --- In-memory fakes ---

type memObservationStore struct {
	mu      sync.Mutex
	rows    map[int64]models.Observation // keyed by unix millis
	failing bool
	upserts int
}

func newMemObservationStore() *memObservationStore {
	return &memObservationStore{rows: make(map[int64]models.Observation)}
}

func (s *memObservationStore) Latest(ctx context.Context) (*models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, domrepo.ErrStoreUnavailable
	}
	var latest *models.Observation
	for _, o := range s.rows {
		o := o
		if latest == nil || o.Timestamp.After(latest.Timestamp) {
			latest = &o
		}
	}
	return latest, nil
}

func (s *memObservationStore) RangeFrom(ctx context.Context, start time.Time) ([]models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, domrepo.ErrStoreUnavailable
	}
	out := make([]models.Observation, 0, len(s.rows))
	for _, o := range s.rows {
		if !o.Timestamp.Before(start) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *memObservationStore) Upsert(ctx context.Context, obs []models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return domrepo.ErrStoreWriteRejected
	}
	s.upserts++
	for _, o := range obs {
		s.rows[o.Timestamp.UnixMilli()] = o
	}
	return nil
}

func (s *memObservationStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memPredictionStore struct {
	mu      sync.Mutex
	rows    map[int64]models.Prediction
	failing bool
}

func newMemPredictionStore() *memPredictionStore {
	return &memPredictionStore{rows: make(map[int64]models.Prediction)}
}

func (s *memPredictionStore) Latest(ctx context.Context) (*models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Prediction
	for _, p := range s.rows {
		p := p
		if latest == nil || p.Timestamp.After(latest.Timestamp) {
			latest = &p
		}
	}
	return latest, nil
}

func (s *memPredictionStore) RangeFrom(ctx context.Context, start time.Time) ([]models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Prediction, 0, len(s.rows))
	for _, p := range s.rows {
		if !p.Timestamp.Before(start) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPredictionStore) Upsert(ctx context.Context, preds []models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return domrepo.ErrStoreWriteRejected
	}
	for _, p := range preds {
		s.rows[p.Timestamp.UnixMilli()] = p
	}
	return nil
}

func (s *memPredictionStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeFeed struct {
	mu        sync.Mutex
	records   []models.Observation
	err       error
	lastStart time.Time
}

func (f *fakeFeed) Fetch(ctx context.Context, start time.Time) ([]models.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastStart = start
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Observation, 0, len(f.records))
	for _, o := range f.records {
		if !o.Timestamp.Before(start) {
			out = append(out, o)
		}
	}
	return out, nil
}

type capturedAlerts struct {
	mu    sync.Mutex
	preds []models.Prediction
	err   error
}

func (a *capturedAlerts) PublishPrediction(ctx context.Context, p models.Prediction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.preds = append(a.preds, p)
	return nil
}

func (a *capturedAlerts) Close() error { return nil }

// --- Harness ---

var testNow = time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)

func newPipeline(obs *memObservationStore, preds *memPredictionStore, feed *fakeFeed, opts ...PipelineOption) *PredictionPipeline {
	opts = append(opts, WithClock(func() time.Time { return testNow }))
	return NewPredictionPipeline(
		obs, preds, feed,
		scoring.NewMeanThresholdScorer(),
		registry.NewPlaceholderLoader("1.0.0"),
		nil,
		72, 1, 72,
		opts...,
	)
}

func obsAt(hoursAgo int, flux float64) models.Observation {
	return models.Observation{Timestamp: testNow.Add(-time.Duration(hoursAgo) * time.Hour), Flux: flux}
}

// --- Tests ---

func TestColdStartFetchWindow(t *testing.T) {
	obs := newMemObservationStore()
	feed := &fakeFeed{}
	p := newPipeline(obs, newMemPredictionStore(), feed)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Empty store: start = now - retrieval - buffer.
	want := testNow.Add(-72 * time.Hour).Add(-1 * time.Hour)
	if !feed.lastStart.Equal(want) {
		t.Fatalf("fetch start = %v, want %v", feed.lastStart, want)
	}
}

func TestStaleLatestClampedToRetrievalBound(t *testing.T) {
	obs := newMemObservationStore()
	stale := obsAt(200, 1e-7) // far older than the 72h retrieval window
	if err := obs.Upsert(context.Background(), []models.Observation{stale}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	feed := &fakeFeed{}
	p := newPipeline(obs, newMemPredictionStore(), feed)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := testNow.Add(-72 * time.Hour).Add(-1 * time.Hour)
	if !feed.lastStart.Equal(want) {
		t.Fatalf("fetch start = %v, want clamp to %v", feed.lastStart, want)
	}
}

func TestRecentLatestAnchorsFetchWindow(t *testing.T) {
	obs := newMemObservationStore()
	recent := obsAt(2, 1e-7)
	if err := obs.Upsert(context.Background(), []models.Observation{recent}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	feed := &fakeFeed{}
	p := newPipeline(obs, newMemPredictionStore(), feed)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := recent.Timestamp.Add(-1 * time.Hour)
	if !feed.lastStart.Equal(want) {
		t.Fatalf("fetch start = %v, want latest-buffer %v", feed.lastStart, want)
	}
}

func TestEmptyFeedIsNoOp(t *testing.T) {
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	p := newPipeline(obs, preds, &fakeFeed{})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeNoNewData {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeNoNewData)
	}
	if obs.size() != 0 || preds.size() != 0 {
		t.Fatalf("no-op run wrote to a store: obs=%d preds=%d", obs.size(), preds.size())
	}
}

func TestFeedFailureAbortsRun(t *testing.T) {
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	feed := &fakeFeed{err: domrepo.ErrFeedUnavailable}
	p := newPipeline(obs, preds, feed)

	_, err := p.Run(context.Background())
	if !errors.Is(err, domrepo.ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
	if obs.size() != 0 || preds.size() != 0 {
		t.Fatalf("aborted run wrote to a store")
	}
}

func TestObservationStoreFailureIsFatal(t *testing.T) {
	obs := newMemObservationStore()
	feed := &fakeFeed{records: []models.Observation{obsAt(1, 2e-7)}}
	p := newPipeline(obs, newMemPredictionStore(), feed)

	obs.failing = true
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected fatal error from observation store")
	}
}

func TestPredictionStoreFailureIsFatal(t *testing.T) {
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	preds.failing = true
	feed := &fakeFeed{records: []models.Observation{obsAt(1, 2e-7)}}
	p := newPipeline(obs, preds, feed)

	if _, err := p.Run(context.Background()); !errors.Is(err, domrepo.ErrStoreWriteRejected) {
		t.Fatalf("expected ErrStoreWriteRejected, got %v", err)
	}
	// Observations persisted before the failure remain: a valid partial
	// outcome, recoverable on the next trigger.
	if obs.size() != 1 {
		t.Fatalf("expected observations to remain persisted, got %d", obs.size())
	}
}

func TestNoModelInputWhenWindowEmpty(t *testing.T) {
	// Feed returns only records older than the model lookback, so they
	// persist but the scoring window comes back empty.
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	old := obsAt(80, 3e-7)
	feed := &fakeFeed{records: []models.Observation{old}}
	// Retrieval window of 100h admits the old record; model lookback stays 72h.
	p := NewPredictionPipeline(
		obs, preds, feed,
		scoring.NewMeanThresholdScorer(),
		registry.NewPlaceholderLoader("1.0.0"),
		nil,
		100, 1, 72,
		WithClock(func() time.Time { return testNow }),
	)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeNoModelInput {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeNoModelInput)
	}
	if obs.size() != 1 {
		t.Fatalf("fetched observation should persist, got %d rows", obs.size())
	}
	if preds.size() != 0 {
		t.Fatalf("no prediction expected, got %d", preds.size())
	}
}

func TestEndToEndRun(t *testing.T) {
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	feed := &fakeFeed{records: []models.Observation{
		obsAt(3, 1e-7),
		obsAt(2, 2e-7),
		obsAt(1, 3e-7),
	}}
	alerts := &capturedAlerts{}
	p := newPipeline(obs, preds, feed, WithAlertPublisher(alerts))

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if res.Fetched != 3 || res.WindowSize != 3 {
		t.Fatalf("fetched=%d window=%d, want 3/3", res.Fetched, res.WindowSize)
	}
	if obs.size() != 3 {
		t.Fatalf("observations persisted = %d, want 3", obs.size())
	}
	if preds.size() != 1 {
		t.Fatalf("predictions persisted = %d, want 1", preds.size())
	}
	if res.Prediction == nil || !res.Prediction.Timestamp.Equal(testNow) {
		t.Fatalf("prediction timestamp should be run time, got %+v", res.Prediction)
	}
	if got := res.Prediction.MClassProbability; got < 0 || got > 1 {
		t.Fatalf("probability out of bounds: %v", got)
	}
	if len(alerts.preds) != 1 {
		t.Fatalf("alert publisher not notified: %d", len(alerts.preds))
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	feed := &fakeFeed{records: []models.Observation{
		obsAt(3, 1e-7),
		obsAt(2, 2e-7),
		obsAt(1, 3e-7),
	}}
	p := newPipeline(obs, preds, feed)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	sizeAfterFirst := obs.size()

	// Second run with no new upstream data: the buffer re-fetches rows
	// already stored, and upsert absorbs them without duplication.
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if obs.size() != sizeAfterFirst {
		t.Fatalf("store size drifted across re-run: %d -> %d", sizeAfterFirst, obs.size())
	}
	// Both runs complete at the same clamped instant, so the prediction
	// upserts onto its own key.
	if preds.size() != 1 {
		t.Fatalf("expected 1 prediction after identical re-run, got %d", preds.size())
	}
}

func TestUpsertReplaceSemantics(t *testing.T) {
	obs := newMemObservationStore()
	ts := testNow.Add(-time.Hour)
	if err := obs.Upsert(context.Background(), []models.Observation{{Timestamp: ts, Flux: 1e-7}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := obs.Upsert(context.Background(), []models.Observation{{Timestamp: ts, Flux: 9e-7}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if obs.size() != 1 {
		t.Fatalf("store grew on colliding timestamp: %d", obs.size())
	}
	latest, err := obs.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Flux != 9e-7 {
		t.Fatalf("value not replaced: %v", latest.Flux)
	}
}

func TestAlertFailureDoesNotFailRun(t *testing.T) {
	obs := newMemObservationStore()
	preds := newMemPredictionStore()
	feed := &fakeFeed{records: []models.Observation{obsAt(1, 2e-7)}}
	alerts := &capturedAlerts{err: errors.New("broker down")}
	p := newPipeline(obs, preds, feed, WithAlertPublisher(alerts))

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run should succeed despite alert failure: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if preds.size() != 1 {
		t.Fatalf("prediction should be persisted, got %d", preds.size())
	}
}
