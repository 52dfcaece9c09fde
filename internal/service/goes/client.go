package goes

import (
	"context"
	"fmt"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	xhttp "FlareCast/pkg/http"
	applogger "FlareCast/pkg/logger"
	"FlareCast/pkg/util"
)

// Client fetches X-ray flux observations from the SWPC GOES JSON feed.
// The feed mixes several energy channels in one array; only the configured
// channel is kept.
type Client struct {
	url     string
	channel string
	http    *xhttp.Client
	l       *applogger.Logger
}

// New creates a GOES feed client.
func New(url, channel string, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		channel: channel,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

type feedRecord struct {
	TimeTag string   `json:"time_tag"`
	Energy  string   `json:"energy"`
	Flux    *float64 `json:"flux"`
}

// Fetch retrieves flux records with timestamp >= start. Records from other
// energy channels, or with a missing/unparseable time or flux, are dropped.
// An empty result is a success; transport and parse failures wrap
// ErrFeedUnavailable.
func (c *Client) Fetch(ctx context.Context, start time.Time) ([]models.Observation, error) {
	var raw []feedRecord
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: "GET",
		URL:    c.url,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domrepo.ErrFeedUnavailable, err)
	}

	out := make([]models.Observation, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		if r.Energy != c.channel {
			continue
		}
		if r.Flux == nil {
			dropped++
			continue
		}
		ts, ok := util.ParseTime(r.TimeTag)
		if !ok {
			dropped++
			continue
		}
		if ts.Before(start) {
			continue
		}
		out = append(out, models.Observation{Timestamp: ts, Flux: *r.Flux})
	}

	if c.l != nil {
		c.l.Debug("goes feed fetched",
			applogger.Int("raw", len(raw)),
			applogger.Int("kept", len(out)),
			applogger.Int("dropped", dropped),
			applogger.Time("start", start),
		)
	}
	return out, nil
}

var _ domrepo.FeedSource = (*Client)(nil)
