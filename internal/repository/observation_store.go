package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	pkgch "FlareCast/pkg/clickhouse"
	applogger "FlareCast/pkg/logger"
)

// CHObservationStore implements ObservationStore backed by ClickHouse.
// The table is a ReplacingMergeTree ordered by timestamp, so inserting a
// row with an existing timestamp replaces it: reads always go through
// FINAL and never surface superseded rows.
type CHObservationStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHObservationStore(ch *pkgch.Client, table string) *CHObservationStore {
	return &CHObservationStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHObservationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHObservationStore) Latest(ctx context.Context) (*models.Observation, error) {
	q := fmt.Sprintf(`SELECT ts, flux FROM %s FINAL ORDER BY ts DESC LIMIT 1`, s.table)

	var o models.Observation
	err := s.db.QueryRowContext(ctx, q).Scan(&o.Timestamp, &o.Flux)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest observation query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("%w: latest observation: %v", domrepo.ErrStoreUnavailable, err)
	}
	o.Timestamp = o.Timestamp.UTC()
	return &o, nil
}

func (s *CHObservationStore) RangeFrom(ctx context.Context, start time.Time) ([]models.Observation, error) {
	q := fmt.Sprintf(`SELECT ts, flux FROM %s FINAL WHERE ts >= ? ORDER BY ts ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, q, start.UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse observation range query error",
				applogger.String("table", s.table),
				applogger.Time("start", start),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("%w: observation range: %v", domrepo.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, 256)
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Timestamp, &o.Flux); err != nil {
			return nil, fmt.Errorf("%w: scan observation: %v", domrepo.ErrStoreUnavailable, err)
		}
		o.Timestamp = o.Timestamp.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: observation rows: %v", domrepo.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *CHObservationStore) Upsert(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	start := time.Now()
	q := fmt.Sprintf(`INSERT INTO %s (ts, flux) VALUES (?, ?)`, s.table)

	for _, o := range obs {
		if _, err := s.db.ExecContext(ctx, q, o.Timestamp.UTC(), o.Flux); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse observation upsert error",
					applogger.String("table", s.table),
					applogger.Time("ts", o.Timestamp),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("%w: upsert observation %s: %v",
				domrepo.ErrStoreWriteRejected, o.Timestamp.UTC().Format(time.RFC3339), err)
		}
	}
	if s.l != nil {
		s.l.Debug("clickhouse observations upserted",
			applogger.String("table", s.table),
			applogger.Int("rows", len(obs)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

var _ domrepo.ObservationStore = (*CHObservationStore)(nil)
