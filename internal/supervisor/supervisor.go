// Package supervisor drives the poll loop over in-flight jobs: for a
// running job it checks the agent session for a PR; for a pr_opened job
// it runs the protected-path and CI guardrails. It is the long-lived
// counterpart to internal/dispatcher's one-shot session creation
// (spec §4.6, §4.7).
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MadhuvanthiSriPad/api-core/internal/agentclient"
	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
	"github.com/MadhuvanthiSriPad/api-core/internal/ciprovider"
	"github.com/MadhuvanthiSriPad/api-core/internal/config"
	"github.com/MadhuvanthiSriPad/api-core/internal/guardrails"
	"github.com/MadhuvanthiSriPad/api-core/internal/job"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Supervisor polls every non-terminal job once per tick and advances its
// state machine according to what it observes.
type Supervisor struct {
	jobs       *job.Store
	agent      *agentclient.Client
	pathCheck  *guardrails.ProtectedPathChecker
	ciGate     *guardrails.CIGate
	cfg        config.SupervisorConfig
	protected  []string
	repoLookup func(consumer string) (config.RepoConvention, bool)
}

func New(
	jobs *job.Store,
	agent *agentclient.Client,
	pathCheck *guardrails.ProtectedPathChecker,
	ciGate *guardrails.CIGate,
	cfg config.SupervisorConfig,
	protectedPathGlobs []string,
	repoLookup func(consumer string) (config.RepoConvention, bool),
) *Supervisor {
	return &Supervisor{
		jobs: jobs, agent: agent, pathCheck: pathCheck, ciGate: ciGate,
		cfg: cfg, protected: protectedPathGlobs, repoLookup: repoLookup,
	}
}

// Run polls every non-terminal job once per PollInterval until ctx is
// cancelled. On cancellation it drains one final pass so still-running
// jobs are recorded as interrupted rather than left silently stuck
// (spec §5's process-cancellation requirement).
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sv.drainOnShutdown(context.Background())
			return
		case <-ticker.C:
			sv.tick(ctx)
		}
	}
}

func (sv *Supervisor) tick(ctx context.Context) {
	jobs, err := sv.jobs.ListNonTerminal(ctx)
	if err != nil {
		slog.Error("supervisor: listing non-terminal jobs failed", "error", err)
		return
	}
	for _, j := range jobs {
		sv.PollOne(ctx, j)
	}
}

// PollOne runs one guardrail/state check against a single job. It is the
// unit of work tick() fans out over every poll cycle; exposed directly so
// callers (and tests) can drive a single job without waiting for a tick.
func (sv *Supervisor) PollOne(ctx context.Context, j model.Job) {
	log := slog.With("job_id", j.ID, "consumer", j.Consumer, "producer", j.Producer, "state", j.State)

	if j.State == model.JobRunning && sv.sessionTimedOut(j) {
		sv.toNeedsHuman(ctx, j, "timeout")
		return
	}

	switch j.State {
	case model.JobRunning:
		sv.pollRunning(ctx, j, log)
	case model.JobPROpened:
		sv.pollPROpened(ctx, j, log)
	}
}

func (sv *Supervisor) sessionTimedOut(j model.Job) bool {
	if j.DispatchedAt.IsZero() {
		return false
	}
	return time.Since(j.DispatchedAt) > sv.cfg.SessionTimeout()
}

func (sv *Supervisor) pollRunning(ctx context.Context, j model.Job, log *slog.Logger) {
	status, err := sv.agent.Poll(ctx, j.SessionID)
	if err != nil {
		if apierrors.IsTransient(err) {
			log.Warn("agent poll failed transiently, retrying next tick", "error", err)
			return
		}
		sv.toFailed(ctx, j, "agent session error: "+err.Error())
		return
	}

	switch status.Status {
	case "completed":
		if status.PRUrl == "" {
			sv.toFailed(ctx, j, "agent reported completed with no PR URL")
			return
		}
		if _, err := sv.jobs.SetPRUrl(ctx, j.ID, status.PRUrl, status.Detail); err != nil {
			log.Error("recording opened PR failed", "error", err)
		}
	case "error":
		sv.toFailed(ctx, j, status.Detail)
	default:
		// still running; nothing to do this tick
	}
}

func (sv *Supervisor) pollPROpened(ctx context.Context, j model.Job, log *slog.Logger) {
	protectedGlobs := sv.protected
	if rc, ok := sv.repoLookup(j.Consumer); ok && len(rc.Protected) > 0 {
		protectedGlobs = rc.Protected
	}

	if verdict := sv.pathCheck.Check(ctx, j.PRUrl, protectedGlobs); !verdict.Pass {
		sv.toNeedsHuman(ctx, j, "protected path: "+verdict.Reason)
		return
	}

	result, pollErr := sv.ciGate.Poll(ctx, j.PRUrl, j.ConsecutiveUnknown)
	if _, err := sv.jobs.RecordCIStatus(ctx, j.ID, result.Status); err != nil {
		log.Error("recording CI status failed", "error", err)
	}

	switch {
	case result.Status == ciprovider.StatusSuccess:
		if _, err := sv.jobs.Transition(ctx, j.ID, model.JobGreen, "CI green", nil); err != nil {
			log.Error("transition to green failed", "error", err)
		}
	case result.Status == ciprovider.StatusFailure:
		sv.toNeedsHuman(ctx, j, "CI failure")
	case result.CeilingExceeded:
		sv.toNeedsHuman(ctx, j, "CI status unknown for too many consecutive polls")
	case pollErr != nil:
		log.Warn("CI poll could not determine status, retrying next tick", "error", pollErr)
	}
}

func (sv *Supervisor) toNeedsHuman(ctx context.Context, j model.Job, reason string) {
	if _, err := sv.jobs.Transition(ctx, j.ID, model.JobNeedsHuman, reason, nil); err != nil {
		slog.Error("transition to needs_human failed", "job_id", j.ID, "error", err)
	}
}

func (sv *Supervisor) toFailed(ctx context.Context, j model.Job, reason string) {
	if _, err := sv.jobs.Transition(ctx, j.ID, model.JobFailed, reason, nil); err != nil {
		slog.Error("transition to failed failed", "job_id", j.ID, "error", err)
	}
}

// drainOnShutdown records every still-non-terminal job as interrupted so
// a cancelled process never leaves jobs silently stuck in running or
// pr_opened (spec §5).
func (sv *Supervisor) drainOnShutdown(ctx context.Context) {
	jobs, err := sv.jobs.ListNonTerminal(ctx)
	if err != nil {
		slog.Error("supervisor: drain-on-shutdown listing failed", "error", err)
		return
	}
	for _, j := range jobs {
		if j.State.Terminal() {
			continue
		}
		if _, err := sv.jobs.Transition(ctx, j.ID, model.JobNeedsHuman, "interrupted", nil); err != nil {
			if !errors.Is(err, job.ErrNotFound) {
				slog.Error("drain-on-shutdown transition failed", "job_id", j.ID, "error", err)
			}
		}
	}
}
