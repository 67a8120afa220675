// Package job persists dispatched jobs and enforces the state machine
// (spec §4.6) around every transition: an illegal transition is rejected
// before it reaches the database, and every transition that does land is
// appended to the audit log in the same round trip (spec §4.8).
package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// ErrNotFound is returned when a job ID or fingerprint has no match.
var ErrNotFound = errors.New("job: not found")

// ErrDuplicateActiveFingerprint is returned by Create when an active
// (non-terminal) job already exists for the same bundle fingerprint, the
// persistence-layer half of spec §4.4's idempotency guarantee.
var ErrDuplicateActiveFingerprint = errors.New("job: an active job already exists for this fingerprint")

// Store is the Job repository.
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an open connection.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

type row struct {
	ID                 string         `db:"id"`
	BundleFingerprint  string         `db:"bundle_fingerprint"`
	Producer           string         `db:"producer"`
	Consumer           string         `db:"consumer"`
	WaveIndex          int            `db:"wave_index"`
	SessionID          string         `db:"session_id"`
	State              string         `db:"state"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	Attempts           int            `db:"attempts"`
	LastDetail         string         `db:"last_detail"`
	PRUrl              string         `db:"pr_url"`
	CIStatus           string         `db:"ci_status"`
	ConsecutiveUnknown int            `db:"consecutive_unknown"`
	DispatchedAt       sql.NullTime   `db:"dispatched_at"`
}

// Create inserts a new job in the queued state. A unique partial index on
// (bundle_fingerprint) where state is non-terminal backs the duplicate
// check (spec §4.4): a bundle already in flight is rejected here rather
// than dispatched twice.
func (s *Store) Create(ctx context.Context, b model.Bundle) (model.Job, error) {
	j := model.Job{
		ID:                uuid.NewString(),
		BundleFingerprint: b.Fingerprint,
		Producer:          b.Producer,
		Consumer:          b.Consumer,
		WaveIndex:         b.WaveIndex,
		State:             model.JobQueued,
	}

	const q = `
		INSERT INTO jobs (id, bundle_fingerprint, producer, consumer, wave_index, state)
		VALUES (:id, :bundle_fingerprint, :producer, :consumer, :wave_index, :state)`

	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":                  j.ID,
		"bundle_fingerprint":  j.BundleFingerprint,
		"producer":            j.Producer,
		"consumer":            j.Consumer,
		"wave_index":          j.WaveIndex,
		"state":               string(j.State),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return model.Job{}, ErrDuplicateActiveFingerprint
		}
		return model.Job{}, fmt.Errorf("creating job for fingerprint %s: %w", b.Fingerprint, err)
	}
	return s.Get(ctx, j.ID)
}

// Get loads one job by ID.
func (s *Store) Get(ctx context.Context, id string) (model.Job, error) {
	const q = `
		SELECT id, bundle_fingerprint, producer, consumer, wave_index, session_id, state,
		       created_at, updated_at, attempts, last_detail, pr_url, ci_status,
		       consecutive_unknown, dispatched_at
		FROM jobs WHERE id = $1`
	var r row
	if err := s.db.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Job{}, ErrNotFound
		}
		return model.Job{}, fmt.Errorf("loading job %s: %w", id, err)
	}
	return toModel(r), nil
}

// ListNonTerminal returns every job the supervisor still needs to poll.
func (s *Store) ListNonTerminal(ctx context.Context) ([]model.Job, error) {
	const q = `
		SELECT id, bundle_fingerprint, producer, consumer, wave_index, session_id, state,
		       created_at, updated_at, attempts, last_detail, pr_url, ci_status,
		       consecutive_unknown, dispatched_at
		FROM jobs
		WHERE state NOT IN ('green', 'needs_human', 'failed', 'skipped_duplicate')
		ORDER BY created_at`
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("listing non-terminal jobs: %w", err)
	}
	out := make([]model.Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModel(r))
	}
	return out, nil
}

// Dispatch records that a job was handed to the agent client: its
// session ID, running state, and dispatch timestamp.
func (s *Store) Dispatch(ctx context.Context, id, sessionID, detail string) (model.Job, error) {
	return s.Transition(ctx, id, model.JobRunning, detail, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET session_id = $1, dispatched_at = now(), attempts = attempts + 1 WHERE id = $2`,
			sessionID, id)
		return err
	})
}

// RecordCIStatus stores the latest CI poll result and updates the
// consecutive-unknown counter (spec §9(b)): any non-unknown status resets
// it to zero, an unknown status increments it.
func (s *Store) RecordCIStatus(ctx context.Context, id, status string) (model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Job{}, fmt.Errorf("starting CI status update for job %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	counterExpr := "0"
	if status == "unknown" {
		counterExpr = "consecutive_unknown + 1"
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE jobs SET ci_status = $1, consecutive_unknown = %s, updated_at = now() WHERE id = $2`, counterExpr),
		status, id)
	if err != nil {
		return model.Job{}, fmt.Errorf("updating CI status for job %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Job{}, fmt.Errorf("committing CI status update for job %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// SetPRUrl records the opened PR's URL alongside the pr_opened transition.
func (s *Store) SetPRUrl(ctx context.Context, id, prURL, detail string) (model.Job, error) {
	return s.Transition(ctx, id, model.JobPROpened, detail, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE jobs SET pr_url = $1 WHERE id = $2`, prURL, id)
		return err
	})
}

// Transition validates and applies a state change, appending one audit
// log entry in the same transaction. mutate, if non-nil, runs extra
// column updates before the state/updated_at write.
func (s *Store) Transition(ctx context.Context, id string, to model.JobState, detail string, mutate func(*sqlx.Tx) error) (model.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Job{}, fmt.Errorf("starting transition for job %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	if err := tx.GetContext(ctx, &current, `SELECT state FROM jobs WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Job{}, ErrNotFound
		}
		return model.Job{}, fmt.Errorf("loading current state for job %s: %w", id, err)
	}

	from := model.JobState(current)
	if !ValidTransition(from, to) {
		return model.Job{}, apierrors.NewStateMachineViolation(id, string(from), string(to))
	}

	if mutate != nil {
		if err := mutate(tx); err != nil {
			return model.Job{}, fmt.Errorf("applying transition side effects for job %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET state = $1, last_detail = $2, updated_at = now() WHERE id = $3`,
		string(to), detail, id); err != nil {
		return model.Job{}, fmt.Errorf("updating job %s state: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (job_id, from_state, to_state, detail) VALUES ($1, $2, $3, $4)`,
		id, string(from), string(to), detail); err != nil {
		return model.Job{}, fmt.Errorf("appending audit entry for job %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Job{}, fmt.Errorf("committing transition for job %s: %w", id, err)
	}

	return s.Get(ctx, id)
}

func toModel(r row) model.Job {
	j := model.Job{
		ID:                 r.ID,
		BundleFingerprint:  r.BundleFingerprint,
		Producer:           r.Producer,
		Consumer:           r.Consumer,
		WaveIndex:          r.WaveIndex,
		SessionID:          r.SessionID,
		State:              model.JobState(r.State),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Attempts:           r.Attempts,
		LastDetail:         r.LastDetail,
		PRUrl:              r.PRUrl,
		CIStatus:           r.CIStatus,
		ConsecutiveUnknown: r.ConsecutiveUnknown,
	}
	if r.DispatchedAt.Valid {
		j.DispatchedAt = r.DispatchedAt.Time
	}
	return j
}

// isUniqueViolation matches Postgres' unique_violation SQLSTATE (23505)
// without importing pgconn just to check one error code.
func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var pgErr sqlStater
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
