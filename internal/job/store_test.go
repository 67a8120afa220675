package job_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
	"github.com/MadhuvanthiSriPad/api-core/internal/audit"
	"github.com/MadhuvanthiSriPad/api-core/internal/dbtest"
	"github.com/MadhuvanthiSriPad/api-core/internal/job"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

func TestCreateRejectsDuplicateActiveFingerprint(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := job.New(client.DB())
	ctx := context.Background()

	b := model.Bundle{Producer: "orders", Consumer: "billing", Fingerprint: "fp-1", WaveIndex: 0}

	j1, err := store.Create(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, j1.State)

	_, err = store.Create(ctx, b)
	assert.ErrorIs(t, err, job.ErrDuplicateActiveFingerprint)
}

func TestCreateAllowsReDispatchAfterTerminal(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := job.New(client.DB())
	ctx := context.Background()

	b := model.Bundle{Producer: "orders", Consumer: "billing", Fingerprint: "fp-2", WaveIndex: 0}

	j1, err := store.Create(ctx, b)
	require.NoError(t, err)

	_, err = store.Dispatch(ctx, j1.ID, "session-1", "dispatched to agent")
	require.NoError(t, err)

	_, err = store.Transition(ctx, j1.ID, model.JobFailed, "agent gave up", nil)
	require.NoError(t, err)

	// Same fingerprint, but the earlier job is terminal now: allowed.
	j2, err := store.Create(ctx, b)
	require.NoError(t, err)
	assert.NotEqual(t, j1.ID, j2.ID)
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := job.New(client.DB())
	ctx := context.Background()

	b := model.Bundle{Producer: "orders", Consumer: "billing", Fingerprint: "fp-3", WaveIndex: 0}
	j1, err := store.Create(ctx, b)
	require.NoError(t, err)

	_, err = store.Transition(ctx, j1.ID, model.JobGreen, "skip ahead", nil)
	require.Error(t, err)
	assert.False(t, apierrors.IsGuardrailTrip(err))
	var violation *apierrors.StateMachineViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "queued", violation.From)
	assert.Equal(t, "green", violation.To)
}

func TestRecordCIStatusTracksConsecutiveUnknown(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := job.New(client.DB())
	ctx := context.Background()

	b := model.Bundle{Producer: "orders", Consumer: "billing", Fingerprint: "fp-4", WaveIndex: 0}
	j1, err := store.Create(ctx, b)
	require.NoError(t, err)
	_, err = store.Dispatch(ctx, j1.ID, "session-1", "dispatched")
	require.NoError(t, err)
	_, err = store.SetPRUrl(ctx, j1.ID, "https://example.com/pr/1", "PR opened")
	require.NoError(t, err)

	_, err = store.RecordCIStatus(ctx, j1.ID, "unknown")
	require.NoError(t, err)
	got, err := store.RecordCIStatus(ctx, j1.ID, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConsecutiveUnknown)

	got, err = store.RecordCIStatus(ctx, j1.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, 0, got.ConsecutiveUnknown)
}

func TestTransitionAppendsAuditEntry(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := job.New(client.DB())
	auditStore := audit.New(client.DB())
	ctx := context.Background()

	b := model.Bundle{Producer: "orders", Consumer: "billing", Fingerprint: "fp-5", WaveIndex: 0}
	j1, err := store.Create(ctx, b)
	require.NoError(t, err)

	_, err = store.Dispatch(ctx, j1.ID, "session-1", "dispatched to agent")
	require.NoError(t, err)

	entries, err := auditStore.ForJob(ctx, j1.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.JobQueued, entries[0].FromState)
	assert.Equal(t, model.JobRunning, entries[0].ToState)
}

func TestListNonTerminalExcludesTerminalJobs(t *testing.T) {
	client := dbtest.NewTestClient(t)
	store := job.New(client.DB())
	ctx := context.Background()

	active, err := store.Create(ctx, model.Bundle{Producer: "orders", Consumer: "billing", Fingerprint: "fp-6", WaveIndex: 0})
	require.NoError(t, err)

	done, err := store.Create(ctx, model.Bundle{Producer: "orders", Consumer: "shipping", Fingerprint: "fp-7", WaveIndex: 0})
	require.NoError(t, err)
	_, err = store.Transition(ctx, done.ID, model.JobSkippedDuplicate, "superseded", nil)
	require.NoError(t, err)

	list, err := store.ListNonTerminal(ctx)
	require.NoError(t, err)

	var ids []string
	for _, j := range list {
		ids = append(ids, j.ID)
	}
	assert.Contains(t, ids, active.ID)
	assert.NotContains(t, ids, done.ID)
}
