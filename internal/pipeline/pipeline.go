// Package pipeline wires every stage into the two operational entry
// points spec §6 describes: running the full propagation pipeline
// (optionally dry-run, stopping short of dispatch) and driving one
// supervisor pass with no new dispatch ("check status").
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
	"github.com/MadhuvanthiSriPad/api-core/internal/bundle"
	"github.com/MadhuvanthiSriPad/api-core/internal/classifier"
	"github.com/MadhuvanthiSriPad/api-core/internal/config"
	"github.com/MadhuvanthiSriPad/api-core/internal/differ"
	"github.com/MadhuvanthiSriPad/api-core/internal/dispatcher"
	"github.com/MadhuvanthiSriPad/api-core/internal/impact"
	"github.com/MadhuvanthiSriPad/api-core/internal/job"
	"github.com/MadhuvanthiSriPad/api-core/internal/metrics"
	"github.com/MadhuvanthiSriPad/api-core/internal/model"
	"github.com/MadhuvanthiSriPad/api-core/internal/servicemap"
	"github.com/MadhuvanthiSriPad/api-core/internal/snapshot"
	"github.com/MadhuvanthiSriPad/api-core/internal/supervisor"
	"github.com/MadhuvanthiSriPad/api-core/internal/telemetry"
	"github.com/MadhuvanthiSriPad/api-core/internal/wave"
)

// Exit codes per spec §6's "Operational surface".
const (
	ExitOK          = 0
	ExitEscalated   = 2
	ExitFailed      = 3
	ExitConfigError = 10
)

// Dependencies bundles every store and external client a pipeline run
// needs. Built once at startup (cmd/api-core) and reused across runs.
type Dependencies struct {
	Snapshot   *snapshot.Store
	ServiceMap *servicemap.Store
	Telemetry  *telemetry.Store
	Jobs       *job.Store
	Dispatcher *dispatcher.Dispatcher
	Supervisor *supervisor.Supervisor
	Config     *config.Config
	Metrics    *metrics.Recorder // nil is fine, every Record* call is a no-op on a nil receiver
}

// Input describes one ingest-and-propagate run.
type Input struct {
	Producer     string
	ToVersion    string
	NextDocument []byte // raw OpenAPI document for the new version
	DryRun       bool   // stop after wave planning, never dispatch
}

// Result is everything a caller (CLI, test) needs to report a run.
type Result struct {
	ChangeSet model.ChangeSet
	Impacts   []model.Impact
	Bundles   []model.Bundle
	Waves     [][]model.Bundle
	Jobs      []model.Job
	ExitCode  int
}

// Run executes the full pipeline: ingest, differ, classifier, impact
// mapper, bundle builder, wave planner, and — unless DryRun — dispatch
// and supervision of every wave in order (spec §2's control flow).
func Run(ctx context.Context, deps Dependencies, in Input) (Result, error) {
	prev, err := deps.Snapshot.Latest(ctx, in.Producer)
	firstIngest := errors.Is(err, snapshot.ErrNotFound)
	if err != nil && !firstIngest {
		return Result{}, apierrors.NewInputError("snapshot", "loading previous contract snapshot", err)
	}

	hash := contentHash(in.NextDocument)
	if !firstIngest && prev.Hash == hash {
		slog.Info("no-op re-ingest, contract unchanged", "producer", in.Producer)
		return Result{ExitCode: ExitOK}, nil
	}

	var cs model.ChangeSet
	if firstIngest {
		slog.Info("first ingest for producer, nothing to diff against", "producer", in.Producer)
		cs = model.ChangeSet{ProducerService: in.Producer, ToVersion: in.ToVersion}
	} else {
		prevDoc, err := differ.LoadDocument(prev.Document)
		if err != nil {
			return Result{}, apierrors.NewInputError("contract", "parsing previous contract document", err)
		}
		nextDoc, err := differ.LoadDocument(in.NextDocument)
		if err != nil {
			return Result{}, apierrors.NewInputError("contract", "parsing next contract document", err)
		}
		entries, err := differ.Diff(prevDoc, nextDoc)
		if err != nil {
			return Result{}, apierrors.NewInputError("contract", "diffing contract documents", err)
		}
		cs = classifier.ClassifyAll(in.Producer, prev.VersionID, in.ToVersion, entries)
	}

	if err := deps.Snapshot.SaveChangeSet(ctx, cs); err != nil {
		return Result{}, err
	}
	if err := deps.Snapshot.Save(ctx, model.ContractVersion{
		ServiceID: in.Producer, VersionID: in.ToVersion, Document: in.NextDocument, Hash: hash,
		CapturedAt: time.Now(),
	}); err != nil {
		return Result{}, err
	}

	edges, err := deps.ServiceMap.All(ctx)
	if err != nil {
		return Result{}, err
	}
	samples, err := deps.Telemetry.ForProducer(ctx, in.Producer)
	if err != nil {
		return Result{}, err
	}

	impacts := impact.Map(cs, edges, samples)
	bundles := buildBundles(deps.Config, impacts, in.ToVersion)
	for range bundles {
		deps.Metrics.BundlesInc()
	}
	waves := wave.Plan(bundles, edges)

	result := Result{ChangeSet: cs, Impacts: impacts, Bundles: bundles, Waves: waves, ExitCode: ExitOK}
	if in.DryRun || len(waves) == 0 {
		deps.Metrics.RecordRun(result.ExitCode)
		return result, nil
	}

	jobs, err := dispatchWaves(ctx, deps, waves)
	if err != nil {
		deps.Metrics.RecordRun(ExitFailed)
		return result, err
	}
	result.Jobs = jobs
	result.ExitCode = exitCodeFor(jobs)
	for _, j := range jobs {
		deps.Metrics.RecordJob(string(j.State))
	}
	deps.Metrics.RecordRun(result.ExitCode)
	return result, nil
}

// buildBundles builds one Bundle per impact that actually has a breaking
// change touching it; additive-only impacts produce no bundle and so are
// never dispatched (spec §8 scenario 3). A consumer with no configured
// repo convention is skipped with a warning since the bundle builder has
// nowhere to point the agent at.
func buildBundles(cfg *config.Config, impacts []model.Impact, producerVersion string) []model.Bundle {
	bundles := make([]model.Bundle, 0, len(impacts))
	for _, imp := range impacts {
		if !imp.IsBreaking() {
			continue
		}
		rc, ok := cfg.RepoConventionFor(imp.Consumer)
		if !ok {
			slog.Warn("no repo convention configured, skipping bundle", "consumer", imp.Consumer)
			continue
		}
		bundles = append(bundles, bundle.Build(imp, producerVersion, rc))
	}
	return bundles
}

// dispatchWaves runs the dispatcher over each wave in order and blocks
// until every job in that wave is terminal before starting the next
// (spec §4.6: "the next wave begins only then").
func dispatchWaves(ctx context.Context, deps Dependencies, waves [][]model.Bundle) ([]model.Job, error) {
	var allJobs []model.Job

	for i, w := range waves {
		outcomes := deps.Dispatcher.RunWave(ctx, w)

		var ids []string
		for _, o := range outcomes {
			if o.Job.ID != "" {
				ids = append(ids, o.Job.ID)
			}
		}

		jobs, err := waitForTerminal(ctx, deps, ids)
		if err != nil {
			return allJobs, err
		}
		slog.Info("wave complete", "wave_index", i, "jobs", len(jobs))
		allJobs = append(allJobs, jobs...)
	}

	return allJobs, nil
}

// waitForTerminal polls the supervisor for the given job IDs until every
// one reaches a terminal state or ctx is cancelled.
func waitForTerminal(ctx context.Context, deps Dependencies, ids []string) ([]model.Job, error) {
	interval := deps.Config.Supervisor.PollInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	for {
		jobs := make([]model.Job, 0, len(ids))
		allTerminal := true
		for _, id := range ids {
			j, err := deps.Jobs.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if !j.State.Terminal() {
				allTerminal = false
				deps.Supervisor.PollOne(ctx, j)
				j, err = deps.Jobs.Get(ctx, id)
				if err != nil {
					return nil, err
				}
			}
			jobs = append(jobs, j)
		}
		if allTerminal {
			return jobs, nil
		}

		select {
		case <-ctx.Done():
			return jobs, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// CheckStatus drives one supervisor pass over every currently non-terminal
// job without dispatching anything new (spec §6's second entry point).
func CheckStatus(ctx context.Context, deps Dependencies) (Result, error) {
	before, err := deps.Jobs.ListNonTerminal(ctx)
	if err != nil {
		return Result{}, err
	}

	jobs := make([]model.Job, 0, len(before))
	for _, j := range before {
		deps.Supervisor.PollOne(ctx, j)
		updated, err := deps.Jobs.Get(ctx, j.ID)
		if err != nil {
			return Result{}, err
		}
		jobs = append(jobs, updated)
	}

	exitCode := exitCodeFor(jobs)
	deps.Metrics.RecordRun(exitCode)
	return Result{Jobs: jobs, ExitCode: exitCode}, nil
}

// exitCodeFor ranks failed above escalated above clean, per spec §6:
// a single failed job in the set takes priority over an escalation.
func exitCodeFor(jobs []model.Job) int {
	escalated := false
	for _, j := range jobs {
		if j.State == model.JobFailed {
			return ExitFailed
		}
		if j.State == model.JobNeedsHuman {
			escalated = true
		}
	}
	if escalated {
		return ExitEscalated
	}
	return ExitOK
}

func contentHash(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}
