// Package guardrails implements the fail-closed checks the supervisor
// runs before letting a job reach a green terminal state (spec §4.7):
// the changed-file list must avoid every protected glob, and CI must
// have actually reported success. Either check's own failure to
// determine an answer routes the job to needs_human rather than being
// treated as a pass.
package guardrails

import (
	"context"
	"path/filepath"

	"github.com/MadhuvanthiSriPad/api-core/internal/ciprovider"
	"github.com/MadhuvanthiSriPad/api-core/internal/gitprovider"
)

// Verdict is the supervisor-facing outcome of a guardrail check.
type Verdict struct {
	Pass   bool
	Reason string // empty when Pass is true
}

// ProtectedPathChecker flags PRs that touch any of a consumer's
// protected glob patterns (spec §4.7's "protected-path check").
type ProtectedPathChecker struct {
	git *gitprovider.Client
}

func NewProtectedPathChecker(git *gitprovider.Client) *ProtectedPathChecker {
	return &ProtectedPathChecker{git: git}
}

// Check fetches the PR's changed files and matches them against the
// protected globs. An error retrieving the file list is itself a
// guardrail failure: the caller must not assume the path is safe.
func (c *ProtectedPathChecker) Check(ctx context.Context, prURL string, protectedGlobs []string) Verdict {
	files, err := c.git.ChangedFiles(ctx, prURL)
	if err != nil {
		return Verdict{Pass: false, Reason: "could not retrieve changed files: " + err.Error()}
	}

	for _, f := range files {
		for _, glob := range protectedGlobs {
			if matched, _ := filepath.Match(glob, f); matched {
				return Verdict{Pass: false, Reason: "touches protected path " + f}
			}
		}
	}
	return Verdict{Pass: true}
}

// CIGate reports whether a PR's CI run has actually gone green,
// tracking consecutive "unknown" polls so a flaky provider doesn't
// wedge a job forever (Open Question (b), spec §9).
type CIGate struct {
	ci         *ciprovider.Client
	maxUnknown int
}

func NewCIGate(ci *ciprovider.Client, maxUnknown int) *CIGate {
	return &CIGate{ci: ci, maxUnknown: maxUnknown}
}

// PollResult is the outcome of one CI poll, including whether the
// consecutive-unknown ceiling has now been exceeded.
type PollResult struct {
	Status             string
	ConsecutiveUnknown int
	CeilingExceeded    bool
}

// Poll fetches the current CI status and folds it into the running
// consecutive-unknown count (priorConsecutiveUnknown comes from the
// job record so the count survives across polls).
func (g *CIGate) Poll(ctx context.Context, prURL string, priorConsecutiveUnknown int) (PollResult, error) {
	status, err := g.ci.Status(ctx, prURL)
	if err != nil {
		status = ciprovider.StatusUnknown
	}

	consecutive := priorConsecutiveUnknown
	if status == ciprovider.StatusUnknown {
		consecutive++
	} else {
		consecutive = 0
	}

	return PollResult{
		Status:             status,
		ConsecutiveUnknown: consecutive,
		CeilingExceeded:    consecutive >= g.maxUnknown,
	}, err
}
