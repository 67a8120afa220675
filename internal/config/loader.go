package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile is the single YAML file read from configDir.
const defaultConfigFile = "engine.yaml"

// Initialize loads, expands, decodes, and validates configuration. This is
// the primary entry point, mirroring the teacher's config.Initialize
// shape: load -> validate -> return ready-to-use Config.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"telemetry_window_days", cfg.TelemetryWindowDays,
		"max_concurrent_sessions", cfg.Dispatch.MaxConcurrentSessions,
		"repo_conventions", len(cfg.RepoConventions))

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, defaultConfigFile)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, ErrConfigNotFound)
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	cfg := &Config{configDir: configDir}
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true) // unknown options are rejected at startup
	if err := dec.Decode(cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	return cfg, nil
}

// applyDefaults fills in zero-valued optional fields with production
// defaults (spec §4.6/§5/§6).
func applyDefaults(cfg *Config) {
	if cfg.Dispatch.MaxConcurrentSessions == 0 {
		cfg.Dispatch.MaxConcurrentSessions = 4
	}
	if cfg.Supervisor.PollIntervalSeconds == 0 {
		cfg.Supervisor.PollIntervalSeconds = 30
	}
	if cfg.Supervisor.SessionTimeoutMinutes == 0 {
		cfg.Supervisor.SessionTimeoutMinutes = 90
	}
	if cfg.TelemetryWindowDays == 0 {
		cfg.TelemetryWindowDays = 7
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
}
