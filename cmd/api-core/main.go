// Command api-core runs the contract propagation engine's two batch
// entry points: the full pipeline (optionally dry-run) and a
// status-only supervisor pass (spec §6 "Operational surface").
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MadhuvanthiSriPad/api-core/internal/agentclient"
	"github.com/MadhuvanthiSriPad/api-core/internal/apierrors"
	"github.com/MadhuvanthiSriPad/api-core/internal/audit"
	"github.com/MadhuvanthiSriPad/api-core/internal/ciprovider"
	"github.com/MadhuvanthiSriPad/api-core/internal/config"
	"github.com/MadhuvanthiSriPad/api-core/internal/database"
	"github.com/MadhuvanthiSriPad/api-core/internal/dispatcher"
	"github.com/MadhuvanthiSriPad/api-core/internal/gitprovider"
	"github.com/MadhuvanthiSriPad/api-core/internal/guardrails"
	"github.com/MadhuvanthiSriPad/api-core/internal/job"
	"github.com/MadhuvanthiSriPad/api-core/internal/metrics"
	"github.com/MadhuvanthiSriPad/api-core/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/MadhuvanthiSriPad/api-core/internal/servicemap"
	"github.com/MadhuvanthiSriPad/api-core/internal/snapshot"
	"github.com/MadhuvanthiSriPad/api-core/internal/supervisor"
	"github.com/MadhuvanthiSriPad/api-core/internal/telemetry"
	"github.com/MadhuvanthiSriPad/api-core/internal/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	mode := flag.String("mode", "run", `operation: "run" (full pipeline) or "check-status" (supervisor pass only)`)
	dryRun := flag.Bool("dry-run", false, "stop before dispatch (run mode only)")
	producer := flag.String("producer", "", "producer service ID (run mode only)")
	toVersion := flag.String("to-version", "", "new contract version ID (run mode only)")
	contractPath := flag.String("contract", "", "path to the new OpenAPI document (run mode only)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		os.Exit(0)
	}

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode, err := run(ctx, *configDir, *mode, *dryRun, *producer, *toVersion, *contractPath)
	if err != nil {
		log.Printf("run failed: %v", err)
	}
	os.Exit(exitCode)
}

func run(ctx context.Context, configDir, mode string, dryRun bool, producer, toVersion, contractPath string) (int, error) {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return pipeline.ExitConfigError, fmt.Errorf("initializing configuration: %w", err)
	}

	dbClient, err := database.NewClient(database.Config{
		URL: cfg.Database.URL, MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns, ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return pipeline.ExitConfigError, fmt.Errorf("connecting to database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("closing database client", "error", err)
		}
	}()
	slog.Info("connected to database, migrations applied")

	backoffCap := cfg.Supervisor.BackoffCap()
	agentClient := agentclient.New(agentBaseURL(), cfg.AgentAPIKey, backoffCap)
	gitClient := gitprovider.New(gitProviderBaseURL(), cfg.GitToken, backoffCap)
	ciClient := ciprovider.New(ciProviderBaseURL(), cfg.GitToken, backoffCap)

	jobs := job.New(dbClient.DB())
	_ = audit.New(dbClient.DB()) // available for an eventual audit-export surface; not read by either entry point yet

	sv := supervisor.New(
		jobs, agentClient,
		guardrails.NewProtectedPathChecker(gitClient),
		guardrails.NewCIGate(ciClient, cfg.Supervisor.MaxUnknown()),
		cfg.Supervisor, cfg.ProtectedPathGlobs, cfg.RepoConventionFor,
	)

	deps := pipeline.Dependencies{
		Snapshot:   snapshot.New(dbClient.DB()),
		ServiceMap: servicemap.New(dbClient.DB()),
		Telemetry:  telemetry.New(dbClient.DB()),
		Jobs:       jobs,
		Dispatcher: dispatcher.New(jobs, agentClient, cfg.Dispatch.MaxConcurrentSessions),
		Supervisor: sv,
		Config:     cfg,
		Metrics:    metrics.New(prometheus.DefaultRegisterer),
	}

	switch mode {
	case "run":
		return runPipeline(ctx, deps, producer, toVersion, contractPath, dryRun)
	case "check-status":
		return checkStatus(ctx, deps)
	default:
		return pipeline.ExitConfigError, fmt.Errorf("unknown mode %q", mode)
	}
}

func runPipeline(ctx context.Context, deps pipeline.Dependencies, producer, toVersion, contractPath string, dryRun bool) (int, error) {
	if producer == "" || toVersion == "" || contractPath == "" {
		return pipeline.ExitConfigError, fmt.Errorf("run mode requires -producer, -to-version, and -contract")
	}

	doc, err := os.ReadFile(contractPath)
	if err != nil {
		return pipeline.ExitConfigError, apierrors.NewInputError("contract", "reading contract document", err)
	}

	result, err := pipeline.Run(ctx, deps, pipeline.Input{
		Producer: producer, ToVersion: toVersion, NextDocument: doc, DryRun: dryRun,
	})
	if err != nil {
		return pipeline.ExitFailed, err
	}

	slog.Info("pipeline run complete",
		"changes", len(result.ChangeSet.Changes),
		"impacts", len(result.Impacts),
		"bundles", len(result.Bundles),
		"waves", len(result.Waves),
		"jobs", len(result.Jobs),
		"dry_run", dryRun)
	return result.ExitCode, nil
}

func checkStatus(ctx context.Context, deps pipeline.Dependencies) (int, error) {
	result, err := pipeline.CheckStatus(ctx, deps)
	if err != nil {
		return pipeline.ExitFailed, err
	}
	slog.Info("status check complete", "jobs_polled", len(result.Jobs))
	return result.ExitCode, nil
}

// The agent/CI/git-provider base URLs are operational endpoints, not
// contract-shape fields, so they come from plain environment variables
// rather than engine.yaml (spec §6 lists only the yaml-backed keys).
func agentBaseURL() string       { return getEnv("AGENT_API_BASE_URL", "http://localhost:9001") }
func gitProviderBaseURL() string { return getEnv("GIT_PROVIDER_BASE_URL", "http://localhost:9002") }
func ciProviderBaseURL() string  { return getEnv("CI_PROVIDER_BASE_URL", "http://localhost:9003") }
