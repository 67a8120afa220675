// Package audit provides read access to the append-only state-transition
// log (spec §4.8). Writes happen transactionally alongside each job state
// change (internal/job.Store.Transition); this package only reads.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Store is the read-only AuditEntry accessor.
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an open connection.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

type row struct {
	ID        int64     `db:"id"`
	JobID     string    `db:"job_id"`
	FromState string    `db:"from_state"`
	ToState   string    `db:"to_state"`
	Timestamp time.Time `db:"timestamp"`
	Detail    string    `db:"detail"`
}

// ForJob returns every transition recorded for a job, oldest first.
func (s *Store) ForJob(ctx context.Context, jobID string) ([]model.AuditEntry, error) {
	const q = `
		SELECT id, job_id, from_state, to_state, timestamp, detail
		FROM audit_log WHERE job_id = $1 ORDER BY timestamp`
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, jobID); err != nil {
		return nil, fmt.Errorf("loading audit log for job %s: %w", jobID, err)
	}
	out := make([]model.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AuditEntry{
			ID:        r.ID,
			JobID:     r.JobID,
			FromState: model.JobState(r.FromState),
			ToState:   model.JobState(r.ToState),
			Timestamp: r.Timestamp,
			Detail:    r.Detail,
		})
	}
	return out, nil
}
