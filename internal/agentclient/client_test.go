package agentclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/agentclient"
)

func TestCreateSessionSendsIdempotencyKeyAndParsesResponse(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotKey = body["idempotency_key"]
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
	}))
	defer srv.Close()

	c := agentclient.New(srv.URL, "test-key", 5*time.Second)
	sessionID, err := c.CreateSession(t.Context(), "fp-abc", "org/repo", "fix the breaking change")

	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, "fp-abc", gotKey)
}

func TestPollReturnsCompletedSessionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "completed", "pr_url": "https://example.com/pr/1",
			"ci_status": "pending", "detail": "opened PR",
		})
	}))
	defer srv.Close()

	c := agentclient.New(srv.URL, "test-key", 5*time.Second)
	status, err := c.Poll(t.Context(), "sess-1")

	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, "https://example.com/pr/1", status.PRUrl)
	assert.Equal(t, "pending", status.CIStatus)
}

func TestCreateSessionPermanentErrorOnClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad prompt"))
	}))
	defer srv.Close()

	c := agentclient.New(srv.URL, "test-key", 2*time.Second)
	_, err := c.CreateSession(t.Context(), "fp-abc", "org/repo", "")

	require.Error(t, err)
}
