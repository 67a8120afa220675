// Package servicemap persists the declared producer->consumer service map
// (spec §3/§4.3's "declared edges" input).
package servicemap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Store is the ServiceEdge repository.
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an open connection.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Replace swaps the full declared service map in one transaction. The
// external service map is treated as the source of truth on each sync, so
// a full replace (rather than incremental upsert) keeps stale edges from
// lingering after a producer or consumer is decommissioned.
func (s *Store) Replace(ctx context.Context, edges []model.ServiceEdge) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting service map replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM service_edges`); err != nil {
		return fmt.Errorf("clearing service map: %w", err)
	}

	const q = `INSERT INTO service_edges (producer, consumer, declared) VALUES (:producer, :consumer, :declared)`
	for _, e := range edges {
		if _, err := tx.NamedExecContext(ctx, q, e); err != nil {
			return fmt.Errorf("inserting edge %s->%s: %w", e.Producer, e.Consumer, err)
		}
	}

	return tx.Commit()
}

// ConsumersOf returns every declared consumer of a producer.
func (s *Store) ConsumersOf(ctx context.Context, producer string) ([]model.ServiceEdge, error) {
	const q = `SELECT producer, consumer, declared FROM service_edges WHERE producer = $1`
	var edges []model.ServiceEdge
	if err := s.db.SelectContext(ctx, &edges, q, producer); err != nil {
		return nil, fmt.Errorf("loading consumers of %s: %w", producer, err)
	}
	return edges, nil
}

// All returns the full declared service map.
func (s *Store) All(ctx context.Context) ([]model.ServiceEdge, error) {
	const q = `SELECT producer, consumer, declared FROM service_edges`
	var edges []model.ServiceEdge
	if err := s.db.SelectContext(ctx, &edges, q); err != nil {
		return nil, fmt.Errorf("loading service map: %w", err)
	}
	return edges, nil
}
