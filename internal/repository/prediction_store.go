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

// CHPredictionStore implements PredictionStore backed by ClickHouse, with
// the same ReplacingMergeTree upsert semantics as the observation table.
type CHPredictionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPredictionStore(ch *pkgch.Client, table string) *CHPredictionStore {
	return &CHPredictionStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPredictionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPredictionStore) Latest(ctx context.Context) (*models.Prediction, error) {
	q := fmt.Sprintf(`SELECT ts, m_class_probability, risk_level, model_version FROM %s FINAL ORDER BY ts DESC LIMIT 1`, s.table)

	var p models.Prediction
	var risk string
	err := s.db.QueryRowContext(ctx, q).Scan(&p.Timestamp, &p.MClassProbability, &risk, &p.ModelVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest prediction query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("%w: latest prediction: %v", domrepo.ErrStoreUnavailable, err)
	}
	p.Timestamp = p.Timestamp.UTC()
	p.RiskLevel = models.RiskLevel(risk)
	return &p, nil
}

func (s *CHPredictionStore) RangeFrom(ctx context.Context, start time.Time) ([]models.Prediction, error) {
	q := fmt.Sprintf(`SELECT ts, m_class_probability, risk_level, model_version FROM %s FINAL WHERE ts >= ? ORDER BY ts ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, q, start.UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse prediction range query error",
				applogger.String("table", s.table),
				applogger.Time("start", start),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("%w: prediction range: %v", domrepo.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.Prediction, 0, 64)
	for rows.Next() {
		var p models.Prediction
		var risk string
		if err := rows.Scan(&p.Timestamp, &p.MClassProbability, &risk, &p.ModelVersion); err != nil {
			return nil, fmt.Errorf("%w: scan prediction: %v", domrepo.ErrStoreUnavailable, err)
		}
		p.Timestamp = p.Timestamp.UTC()
		p.RiskLevel = models.RiskLevel(risk)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: prediction rows: %v", domrepo.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *CHPredictionStore) Upsert(ctx context.Context, preds []models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (ts, m_class_probability, risk_level, model_version) VALUES (?, ?, ?, ?)`, s.table)

	for _, p := range preds {
		if _, err := s.db.ExecContext(ctx, q, p.Timestamp.UTC(), p.MClassProbability, string(p.RiskLevel), p.ModelVersion); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse prediction upsert error",
					applogger.String("table", s.table),
					applogger.Time("ts", p.Timestamp),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("%w: upsert prediction %s: %v",
				domrepo.ErrStoreWriteRejected, p.Timestamp.UTC().Format(time.RFC3339), err)
		}
	}
	return nil
}

var _ domrepo.PredictionStore = (*CHPredictionStore)(nil)
