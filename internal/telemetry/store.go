// Package telemetry persists the observed call-volume samples fed into
// the impact mapper (spec §3/§4.3's "observed telemetry" input).
package telemetry

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Store is the TelemetrySample repository.
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an open connection.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

type row struct {
	Consumer      string `db:"consumer"`
	Producer      string `db:"producer"`
	Method        string `db:"method"`
	RouteTemplate string `db:"route_template"`
	Calls7d       int64  `db:"calls_7d"`
	Confidence    string `db:"confidence"`
}

// Replace swaps the full telemetry window in one transaction, matching
// the sync cadence of the external telemetry feed (spec §4.6 "sync").
func (s *Store) Replace(ctx context.Context, samples []model.TelemetrySample) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting telemetry replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM telemetry_samples`); err != nil {
		return fmt.Errorf("clearing telemetry samples: %w", err)
	}

	const q = `
		INSERT INTO telemetry_samples (consumer, producer, method, route_template, calls_7d, confidence)
		VALUES (:consumer, :producer, :method, :route_template, :calls_7d, :confidence)`
	for _, sample := range samples {
		r := fromModel(sample)
		if _, err := tx.NamedExecContext(ctx, q, r); err != nil {
			return fmt.Errorf("inserting telemetry sample %s<-%s %s: %w", sample.Consumer, sample.Producer, sample.RouteTemplate, err)
		}
	}

	return tx.Commit()
}

// ForProducer returns every observed sample for a producer, the shape the
// impact mapper consumes.
func (s *Store) ForProducer(ctx context.Context, producer string) ([]model.TelemetrySample, error) {
	const q = `
		SELECT consumer, producer, method, route_template, calls_7d, confidence
		FROM telemetry_samples WHERE producer = $1`
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, producer); err != nil {
		return nil, fmt.Errorf("loading telemetry for %s: %w", producer, err)
	}
	out := make([]model.TelemetrySample, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModel(r))
	}
	return out, nil
}

func fromModel(s model.TelemetrySample) row {
	return row{
		Consumer:      s.Consumer,
		Producer:      s.Producer,
		Method:        s.Method,
		RouteTemplate: s.RouteTemplate,
		Calls7d:       s.Calls7d,
		Confidence:    string(s.Confidence),
	}
}

func toModel(r row) model.TelemetrySample {
	return model.TelemetrySample{
		Consumer:      r.Consumer,
		Producer:      r.Producer,
		Method:        r.Method,
		RouteTemplate: r.RouteTemplate,
		Calls7d:       r.Calls7d,
		Confidence:    model.Confidence(r.Confidence),
	}
}
