// Package snapshot persists and retrieves ContractVersion records: the
// "last-known" OpenAPI document captured per service (spec §3/§4.1).
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a service.
var ErrNotFound = errors.New("snapshot: not found")

// Store is the ContractVersion repository.
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an open connection.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

type row struct {
	ServiceID  string       `db:"service_id"`
	VersionID  string       `db:"version_id"`
	Document   []byte       `db:"document"`
	Hash       string       `db:"hash"`
	CapturedAt sql.NullTime `db:"captured_at"`
}

// Save stores a captured version. Saving a version ID that already exists
// for the service overwrites its document, hash and capture time. Skipping
// a re-ingest of an identical document (same hash) is the caller's check,
// not enforced here.
func (s *Store) Save(ctx context.Context, cv model.ContractVersion) error {
	const q = `
		INSERT INTO contract_versions (service_id, version_id, document, hash, captured_at)
		VALUES (:service_id, :version_id, :document, :hash, :captured_at)
		ON CONFLICT (service_id, version_id) DO UPDATE SET
			document = EXCLUDED.document,
			hash = EXCLUDED.hash,
			captured_at = EXCLUDED.captured_at`

	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"service_id":  cv.ServiceID,
		"version_id":  cv.VersionID,
		"document":    cv.Document,
		"hash":        cv.Hash,
		"captured_at": cv.CapturedAt,
	})
	if err != nil {
		return fmt.Errorf("saving contract version %s/%s: %w", cv.ServiceID, cv.VersionID, err)
	}
	return nil
}

// Latest returns the most recently captured version for a service.
func (s *Store) Latest(ctx context.Context, serviceID string) (model.ContractVersion, error) {
	const q = `
		SELECT service_id, version_id, document, hash, captured_at
		FROM contract_versions
		WHERE service_id = $1
		ORDER BY captured_at DESC
		LIMIT 1`

	var r row
	if err := s.db.GetContext(ctx, &r, q, serviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ContractVersion{}, ErrNotFound
		}
		return model.ContractVersion{}, fmt.Errorf("loading latest snapshot for %s: %w", serviceID, err)
	}
	return toModel(r), nil
}

// ByVersion returns one specific captured version.
func (s *Store) ByVersion(ctx context.Context, serviceID, versionID string) (model.ContractVersion, error) {
	const q = `
		SELECT service_id, version_id, document, hash, captured_at
		FROM contract_versions
		WHERE service_id = $1 AND version_id = $2`

	var r row
	if err := s.db.GetContext(ctx, &r, q, serviceID, versionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ContractVersion{}, ErrNotFound
		}
		return model.ContractVersion{}, fmt.Errorf("loading snapshot %s/%s: %w", serviceID, versionID, err)
	}
	return toModel(r), nil
}

func toModel(r row) model.ContractVersion {
	return model.ContractVersion{
		ServiceID:  r.ServiceID,
		VersionID:  r.VersionID,
		Document:   r.Document,
		Hash:       r.Hash,
		CapturedAt: r.CapturedAt.Time,
	}
}
