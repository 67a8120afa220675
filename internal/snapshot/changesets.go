package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

type changeSetRow struct {
	ProducerService string `db:"producer_service"`
	FromVersion     string `db:"from_version"`
	ToVersion       string `db:"to_version"`
	Changes         []byte `db:"changes"`
	RollupSeverity  string `db:"rollup_severity"`
	RollupBreaking  bool   `db:"rollup_breaking"`
}

// SaveChangeSet records one run's classified diff for audit and
// re-inspection, independent of the contract version snapshots it was
// computed from.
func (s *Store) SaveChangeSet(ctx context.Context, cs model.ChangeSet) error {
	changesJSON, err := json.Marshal(cs.Changes)
	if err != nil {
		return fmt.Errorf("encoding change set for %s: %w", cs.ProducerService, err)
	}

	const q = `
		INSERT INTO change_sets (producer_service, from_version, to_version, changes, rollup_severity, rollup_breaking)
		VALUES (:producer_service, :from_version, :to_version, :changes, :rollup_severity, :rollup_breaking)`

	_, err = s.db.NamedExecContext(ctx, q, changeSetRow{
		ProducerService: cs.ProducerService,
		FromVersion:     cs.FromVersion,
		ToVersion:       cs.ToVersion,
		Changes:         changesJSON,
		RollupSeverity:  string(cs.RollupSeverity()),
		RollupBreaking:  cs.RollupIsBreaking(),
	})
	if err != nil {
		return fmt.Errorf("saving change set for %s: %w", cs.ProducerService, err)
	}
	return nil
}

// LatestChangeSet returns the most recently recorded change set for a
// producer, so what the last run found can be read back without
// recomputing the diff.
func (s *Store) LatestChangeSet(ctx context.Context, producer string) (model.ChangeSet, error) {
	const q = `
		SELECT producer_service, from_version, to_version, changes, rollup_severity, rollup_breaking
		FROM change_sets WHERE producer_service = $1 ORDER BY created_at DESC LIMIT 1`

	var r changeSetRow
	if err := s.db.GetContext(ctx, &r, q, producer); err != nil {
		return model.ChangeSet{}, fmt.Errorf("loading latest change set for %s: %w", producer, err)
	}

	var changes []model.ClassifiedChange
	if err := json.Unmarshal(r.Changes, &changes); err != nil {
		return model.ChangeSet{}, fmt.Errorf("decoding change set for %s: %w", producer, err)
	}

	return model.ChangeSet{
		ProducerService: r.ProducerService,
		FromVersion:     r.FromVersion,
		ToVersion:       r.ToVersion,
		Changes:         changes,
	}, nil
}
