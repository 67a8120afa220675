package dispatcher_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/agentclient"
	"github.com/MadhuvanthiSriPad/api-core/internal/dbtest"
	"github.com/MadhuvanthiSriPad/api-core/internal/dispatcher"
	"github.com/MadhuvanthiSriPad/api-core/internal/job"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

func TestRunWaveDispatchesAllBundlesConcurrently(t *testing.T) {
	client := dbtest.NewTestClient(t)
	jobs := job.New(client.DB())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-" + r.URL.Path})
	}))
	defer srv.Close()

	agent := agentclient.New(srv.URL, "key", 5*time.Second)
	d := dispatcher.New(jobs, agent, 2)

	bundles := []model.Bundle{
		{Consumer: "billing", Producer: "orders", Fingerprint: "fp-a"},
		{Consumer: "shipping", Producer: "orders", Fingerprint: "fp-b"},
		{Consumer: "catalog", Producer: "orders", Fingerprint: "fp-c"},
	}

	outcomes := d.RunWave(t.Context(), bundles)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.False(t, o.Skipped)
		assert.Equal(t, model.JobRunning, o.Job.State)
		assert.NotEmpty(t, o.Job.SessionID)
	}
}

func TestRunWaveSkipsDuplicateActiveFingerprint(t *testing.T) {
	client := dbtest.NewTestClient(t)
	jobs := job.New(client.DB())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
	}))
	defer srv.Close()

	agent := agentclient.New(srv.URL, "key", 5*time.Second)
	d := dispatcher.New(jobs, agent, 2)

	b := model.Bundle{Consumer: "billing", Producer: "orders", Fingerprint: "fp-dup"}

	first := d.RunWave(t.Context(), []model.Bundle{b})
	require.Len(t, first, 1)
	require.NoError(t, first[0].Err)

	second := d.RunWave(t.Context(), []model.Bundle{b})
	require.Len(t, second, 1)
	assert.True(t, second[0].Skipped)
}

func TestRunWaveMarksJobFailedWhenAgentSessionCreateFails(t *testing.T) {
	client := dbtest.NewTestClient(t)
	jobs := job.New(client.DB())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	agent := agentclient.New(srv.URL, "key", 500*time.Millisecond)
	d := dispatcher.New(jobs, agent, 1)

	b := model.Bundle{Consumer: "billing", Producer: "orders", Fingerprint: "fp-fail"}
	outcomes := d.RunWave(t.Context(), []model.Bundle{b})
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)

	got, err := jobs.Get(t.Context(), outcomes[0].Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, got.State)
}
