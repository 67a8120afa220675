package guardrails_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/ciprovider"
	"github.com/MadhuvanthiSriPad/api-core/internal/gitprovider"
	"github.com/MadhuvanthiSriPad/api-core/internal/guardrails"
)

func TestProtectedPathCheckerFlagsMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"files": {"internal/billing/client.go", "migrations/0002_init.sql"},
		})
	}))
	defer srv.Close()

	git := gitprovider.New(srv.URL, "key", 5*time.Second)
	checker := guardrails.NewProtectedPathChecker(git)

	verdict := checker.Check(t.Context(), "https://example.com/pr/1", []string{"migrations/*"})
	assert.False(t, verdict.Pass)
	assert.Contains(t, verdict.Reason, "migrations/0002_init.sql")
}

func TestProtectedPathCheckerPassesWhenNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"files": {"internal/billing/client.go"},
		})
	}))
	defer srv.Close()

	git := gitprovider.New(srv.URL, "key", 5*time.Second)
	checker := guardrails.NewProtectedPathChecker(git)

	verdict := checker.Check(t.Context(), "https://example.com/pr/1", []string{"migrations/*"})
	assert.True(t, verdict.Pass)
}

func TestProtectedPathCheckerFailsClosedOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	git := gitprovider.New(srv.URL, "key", 500*time.Millisecond)
	checker := guardrails.NewProtectedPathChecker(git)

	verdict := checker.Check(t.Context(), "https://example.com/pr/missing", []string{"migrations/*"})
	assert.False(t, verdict.Pass)
}

func TestCIGateTracksConsecutiveUnknownAndExceedsCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weird-status"))
	}))
	defer srv.Close()

	ci := ciprovider.New(srv.URL, "key", 5*time.Second)
	gate := guardrails.NewCIGate(ci, 2)

	result, err := gate.Poll(t.Context(), "https://example.com/pr/1", 1)
	require.NoError(t, err)
	assert.Equal(t, ciprovider.StatusUnknown, result.Status)
	assert.Equal(t, 2, result.ConsecutiveUnknown)
	assert.True(t, result.CeilingExceeded)
}

func TestCIGateResetsConsecutiveUnknownOnKnownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("success"))
	}))
	defer srv.Close()

	ci := ciprovider.New(srv.URL, "key", 5*time.Second)
	gate := guardrails.NewCIGate(ci, 5)

	result, err := gate.Poll(t.Context(), "https://example.com/pr/1", 3)
	require.NoError(t, err)
	assert.Equal(t, ciprovider.StatusSuccess, result.Status)
	assert.Equal(t, 0, result.ConsecutiveUnknown)
	assert.False(t, result.CeilingExceeded)
}
