// Package agentclient talks to the external coding agent: session
// creation (idempotent on the bundle fingerprint) and status polling
// (spec §4.6).
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MadhuvanthiSriPad/api-core/internal/extclient"
)

// SessionStatus is the supervisor-relevant projection of one poll.
type SessionStatus struct {
	Status   string // "accepted", "running", "completed", "error"
	PRUrl    string
	CIStatus string // "success", "failure", "unknown", "pending", or "" if not yet known
	Detail   string
}

// Client is a thin wrapper around the agent's session API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker
	backoffCap time.Duration
}

// New builds a Client. backoffCap bounds how long transient failures are
// retried before giving up (spec §5's per-call budget).
func New(baseURL, apiKey string, backoffCap time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     slog.Default().With("component", "agent-client"),
		breaker:    extclient.NewBreaker("agent-client"),
		backoffCap: backoffCap,
	}
}

type createSessionRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Prompt         string `json:"prompt"`
	RepoRef        string `json:"repo_ref"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession submits a bundle's prompt as a new agent session, passing
// the bundle fingerprint as an idempotency key so a retried create never
// spawns a second session for the same work (spec §4.6 step 2).
func (c *Client) CreateSession(ctx context.Context, fingerprint, repoRef, prompt string) (string, error) {
	var sessionID string

	err := extclient.Do(ctx, c.breaker, c.backoffCap, "agent.create_session", func() error {
		body, err := json.Marshal(createSessionRequest{
			IdempotencyKey: fingerprint,
			Prompt:         prompt,
			RepoRef:        repoRef,
		})
		if err != nil {
			return fmt.Errorf("encoding create-session request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building create-session request: %w", err)
		}
		c.setAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return extclient.ClassifyTransportError("agent.create_session", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if err := extclient.ClassifyHTTPStatus("agent.create_session", resp.StatusCode, string(respBody)); err != nil {
			return err
		}

		var parsed createSessionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("decoding create-session response: %w", err)
		}
		sessionID = parsed.SessionID
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("created agent session", "session_id", sessionID, "fingerprint", fingerprint)
	return sessionID, nil
}

type pollSessionResponse struct {
	Status   string `json:"status"`
	PRUrl    string `json:"pr_url"`
	CIStatus string `json:"ci_status"`
	Detail   string `json:"detail"`
}

// Poll fetches the latest status of a live session.
func (c *Client) Poll(ctx context.Context, sessionID string) (SessionStatus, error) {
	var out SessionStatus

	err := extclient.Do(ctx, c.breaker, c.backoffCap, "agent.poll_session", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sessions/"+sessionID, nil)
		if err != nil {
			return fmt.Errorf("building poll request: %w", err)
		}
		c.setAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return extclient.ClassifyTransportError("agent.poll_session", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if err := extclient.ClassifyHTTPStatus("agent.poll_session", resp.StatusCode, string(respBody)); err != nil {
			return err
		}

		var parsed pollSessionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fmt.Errorf("decoding poll response: %w", err)
		}
		out = SessionStatus{
			Status: parsed.Status, PRUrl: parsed.PRUrl,
			CIStatus: parsed.CIStatus, Detail: parsed.Detail,
		}
		return nil
	})
	if err != nil {
		return SessionStatus{}, err
	}
	return out, nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
