package goes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domrepo "FlareCast/internal/domain/repository"
)

const feedBody = `[
  {"time_tag": "2024-05-01T00:00:00Z", "energy": "0.1-0.8nm", "flux": 2.5e-7},
  {"time_tag": "2024-05-01T00:00:00Z", "energy": "0.05-0.4nm", "flux": 1.0e-8},
  {"time_tag": "2024-05-01T01:00:00Z", "energy": "0.1-0.8nm", "flux": 3.1e-7},
  {"time_tag": "not-a-time",           "energy": "0.1-0.8nm", "flux": 9.9e-7},
  {"time_tag": "2024-05-01T02:00:00Z", "energy": "0.1-0.8nm"},
  {"time_tag": "2024-04-30T00:00:00Z", "energy": "0.1-0.8nm", "flux": 5.0e-7}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "0.1-0.8nm", 5*time.Second)
}

func TestFetchFiltersChannelAndBadRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	})

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	obs, err := c.Fetch(context.Background(), start)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// Kept: the two valid long-channel records at or after start. Dropped:
	// other channel, unparseable time, missing flux, record before start.
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d: %+v", len(obs), obs)
	}
	if obs[0].Flux != 2.5e-7 || obs[1].Flux != 3.1e-7 {
		t.Fatalf("unexpected flux values: %+v", obs)
	}
	for _, o := range obs {
		if o.Timestamp.Before(start) {
			t.Fatalf("observation before start: %v", o.Timestamp)
		}
	}
}

func TestFetchEmptyFilteredResultIsNotError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"time_tag": "2024-05-01T00:00:00Z", "energy": "0.05-0.4nm", "flux": 1e-8}]`))
	})

	obs, err := c.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected empty result, got %d", len(obs))
	}
}

func TestFetchServerErrorIsFeedUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Fetch(context.Background(), time.Time{})
	if !errors.Is(err, domrepo.ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestFetchMalformedBodyIsFeedUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"`))
	})

	_, err := c.Fetch(context.Background(), time.Time{})
	if !errors.Is(err, domrepo.ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
}
