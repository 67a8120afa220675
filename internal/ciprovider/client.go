// Package ciprovider reports CI status for a pull request, feeding the
// supervisor's CI-gating guardrail (spec §4.7).
package ciprovider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MadhuvanthiSriPad/api-core/internal/extclient"
)

// Known CI outcomes. "unknown" covers any response body that is not one
// of the recognized conclusion words; in-progress words map to "pending".
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPending = "pending"
	StatusUnknown = "unknown"
)

// Client is a thin wrapper around a CI provider's status API.
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
		logger:     slog.Default().With("component", "ci-provider"),
		breaker:    extclient.NewBreaker("ci-provider"),
		backoffCap: backoffCap,
	}
}

// Status returns one of StatusSuccess/StatusFailure/StatusPending/
// StatusUnknown for the given PR URL's current check run.
func (c *Client) Status(ctx context.Context, prURL string) (string, error) {
	var result string

	err := extclient.Do(ctx, c.breaker, c.backoffCap, "ci.status", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/v1/status?pr="+url.QueryEscape(prURL), nil)
		if err != nil {
			return fmt.Errorf("building ci-status request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return extclient.ClassifyTransportError("ci.status", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if err := extclient.ClassifyHTTPStatus("ci.status", resp.StatusCode, string(body)); err != nil {
			return err
		}

		result = normalizeConclusion(string(body))
		return nil
	})
	if err != nil {
		return StatusUnknown, err
	}
	return result, nil
}

// normalizeConclusion maps whatever single-word conclusion the body holds
// onto our fixed vocabulary, defaulting to unknown rather than guessing.
func normalizeConclusion(body string) string {
	switch strings.TrimSpace(body) {
	case "success", "passed", "green":
		return StatusSuccess
	case "failure", "failed", "red", "error":
		return StatusFailure
	case "pending", "queued", "in_progress", "running":
		return StatusPending
	default:
		return StatusUnknown
	}
}
