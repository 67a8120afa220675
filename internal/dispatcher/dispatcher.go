// Package dispatcher fans bundles out to the agent client under a bounded
// concurrency budget (spec §5: N=4 concurrent sessions by default), one
// wave at a time — a wave does not start until every job in the previous
// wave has left the queued state, honoring the wave planner's ordering
// (spec §4.5).
package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MadhuvanthiSriPad/api-core/internal/agentclient"
	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
	"github.com/MadhuvanthiSriPad/api-core/internal/job"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
)

// Dispatcher creates jobs for a wave's bundles and hands each to the
// agent client, bounded by MaxConcurrent simultaneous in-flight creates.
type Dispatcher struct {
	jobs          *job.Store
	agent         *agentclient.Client
	maxConcurrent int
}

func New(jobs *job.Store, agent *agentclient.Client, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Dispatcher{jobs: jobs, agent: agent, maxConcurrent: maxConcurrent}
}

// Outcome summarizes what happened when dispatching one bundle.
type Outcome struct {
	Bundle  model.Bundle
	Job     model.Job
	Skipped bool // true when an active job already existed for this fingerprint
	Err     error
}

// RunWave dispatches every bundle in one wave concurrently (bounded by
// maxConcurrent) and blocks until all of them have either been created
// and handed to the agent, or failed/skipped. Waves are the caller's
// unit of sequencing: call RunWave once per wave, in order, and do not
// start wave N+1 until wave N returns.
func (d *Dispatcher) RunWave(ctx context.Context, bundles []model.Bundle) []Outcome {
	outcomes := make([]Outcome, len(bundles))

	sem := make(chan struct{}, d.maxConcurrent)
	var wg sync.WaitGroup

	for i, b := range bundles {
		wg.Add(1)
		go func(i int, b model.Bundle) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = Outcome{Bundle: b, Err: ctx.Err()}
				return
			}
			outcomes[i] = d.dispatchOne(ctx, b)
		}(i, b)
	}

	wg.Wait()
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, b model.Bundle) Outcome {
	log := slog.With("consumer", b.Consumer, "producer", b.Producer, "fingerprint", b.Fingerprint)

	created, err := d.jobs.Create(ctx, b)
	if err != nil {
		if err == job.ErrDuplicateActiveFingerprint {
			log.Info("skipping dispatch, active job already exists for this fingerprint")
			return Outcome{Bundle: b, Skipped: true}
		}
		log.Error("creating job failed", "error", err)
		return Outcome{Bundle: b, Err: err}
	}

	sessionID, err := d.agent.CreateSession(ctx, b.Fingerprint, b.RepoRef, b.Prompt)
	if err != nil {
		log.Error("creating agent session failed", "error", err)
		detail := "agent session creation failed: " + err.Error()
		target := model.JobFailed
		if apierrors.IsGuardrailTrip(err) {
			target = model.JobNeedsHuman
		}
		if _, tErr := d.jobs.Transition(ctx, created.ID, target, detail, nil); tErr != nil {
			log.Error("recording dispatch failure failed", "error", tErr)
		}
		return Outcome{Bundle: b, Job: created, Err: err}
	}

	dispatched, err := d.jobs.Dispatch(ctx, created.ID, sessionID, "agent session created")
	if err != nil {
		log.Error("recording dispatch failed", "error", err)
		return Outcome{Bundle: b, Job: created, Err: err}
	}

	log.Info("dispatched job to agent", "job_id", dispatched.ID, "session_id", sessionID)
	return Outcome{Bundle: b, Job: dispatched}
}
