// Package extclient holds the retry/circuit-breaker scaffolding shared by
// every external HTTP client (internal/agentclient, internal/ciprovider,
// internal/gitprovider). Each client stays a thin wrapper in the
// teacher's pkg/slack style; this package only centralizes the transient-
// error retry policy so it isn't re-derived three times.
package extclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
)

// NewBreaker builds a per-call circuit breaker: after 5 consecutive
// failures it opens for 30s before allowing a half-open probe, so a
// degraded external dependency stops being hammered mid-run.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Do runs op through the breaker, retrying apierrors-tagged transient
// failures with exponential backoff capped at backoffCap; a permanent
// error returns immediately without retrying.
func Do(ctx context.Context, cb *gobreaker.CircuitBreaker, backoffCap time.Duration, call string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = backoffCap
	bo := backoff.WithContext(policy, ctx)

	return backoff.Retry(func() error {
		_, err := cb.Execute(func() (any, error) {
			return nil, op()
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apierrors.NewTransientError(call, err)
		}
		if apierrors.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

// ClassifyHTTPStatus maps an HTTP response status into a transient or
// permanent ExternalError: 5xx and 429 are retried, any other 4xx is not.
func ClassifyHTTPStatus(call string, status int, body string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	err := fmt.Errorf("unexpected status %d: %s", status, body)
	if status == http.StatusTooManyRequests || status >= 500 {
		return apierrors.NewTransientError(call, err)
	}
	return apierrors.NewPermanentError(call, err)
}

// ClassifyTransportError wraps a network-level failure (connection reset,
// timeout, DNS failure) as transient: the request never reached the
// external service, so retrying is always safe.
func ClassifyTransportError(call string, err error) error {
	return apierrors.NewTransientError(call, err)
}
