package ciprovider_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadhuvanthiSriPad/api-core/internal/ciprovider"
)

func TestStatusSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/pr/1", r.URL.Query().Get("pr"))
		_, _ = w.Write([]byte("success"))
	}))
	defer srv.Close()

	c := ciprovider.New(srv.URL, "key", 5*time.Second)
	status, err := c.Status(t.Context(), "https://example.com/pr/1")

	require.NoError(t, err)
	assert.Equal(t, ciprovider.StatusSuccess, status)
}

func TestStatusUnrecognizedBodyIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weird-provider-specific-string"))
	}))
	defer srv.Close()

	c := ciprovider.New(srv.URL, "key", 5*time.Second)
	status, err := c.Status(t.Context(), "https://example.com/pr/2")

	require.NoError(t, err)
	assert.Equal(t, ciprovider.StatusUnknown, status)
}

func TestStatusServerErrorIsRetriedThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := ciprovider.New(srv.URL, "key", 500*time.Millisecond)
	_, err := c.Status(t.Context(), "https://example.com/pr/3")

	require.Error(t, err)
}
