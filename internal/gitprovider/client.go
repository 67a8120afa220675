// Package gitprovider lists the files changed by a pull request, feeding
// the protected-path guardrail (spec §4.7).
package gitprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MadhuvanthiSriPad/api-core/internal/extclient"
)

// Client is a thin wrapper around a git hosting provider's diff API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker
	backoffCap time.Duration
}

func New(baseURL, apiKey string, backoffCap time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     slog.Default().With("component", "git-provider"),
		breaker:    extclient.NewBreaker("git-provider"),
		backoffCap: backoffCap,
	}
}

type changedFilesResponse struct {
	Files []string `json:"files"`
}

// ChangedFiles returns the list of file paths touched by the given PR.
// Callers must treat a non-nil error as "changed-file list unavailable",
// which spec §4.7 requires to fail closed to needs_human after a bounded
// number of attempts rather than assuming the path is safe.
func (c *Client) ChangedFiles(ctx context.Context, prURL string) ([]string, error) {
	var files []string

	err := extclient.Do(ctx, c.breaker, c.backoffCap, "git.changed_files", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/v1/pulls/files?pr="+url.QueryEscape(prURL), nil)
		if err != nil {
			return fmt.Errorf("building changed-files request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return extclient.ClassifyTransportError("git.changed_files", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if err := extclient.ClassifyHTTPStatus("git.changed_files", resp.StatusCode, string(body)); err != nil {
			return err
		}

		var parsed changedFilesResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decoding changed-files response: %w", err)
		}
		files = parsed.Files
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
