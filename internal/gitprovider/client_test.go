package gitprovider_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/gitprovider"
)

func TestChangedFilesReturnsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/pr/1", r.URL.Query().Get("pr"))
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"files": {"internal/billing/client.go", "migrations/0002.sql"},
		})
	}))
	defer srv.Close()

	c := gitprovider.New(srv.URL, "key", 5*time.Second)
	files, err := c.ChangedFiles(t.Context(), "https://example.com/pr/1")

	require.NoError(t, err)
	assert.Equal(t, []string{"internal/billing/client.go", "migrations/0002.sql"}, files)
}

func TestChangedFilesPermanentErrorOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such pr"))
	}))
	defer srv.Close()

	c := gitprovider.New(srv.URL, "key", 2*time.Second)
	_, err := c.ChangedFiles(t.Context(), "https://example.com/pr/missing")

	require.Error(t, err)
}
