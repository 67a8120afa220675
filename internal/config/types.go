package config

import "time"

// RepoConvention describes one consumer repository's layout: its root,
// the glob patterns considered protected, and the candidate locations for
// client code, schema mirrors, and tests that a remediation bundle should
// enumerate (spec §6 "Repo conventions per consumer").
type RepoConvention struct {
	Consumer    string   `yaml:"consumer" validate:"required"`
	RepoRef     string   `yaml:"repo_ref" validate:"required"`
	RootPath    string   `yaml:"root_path" validate:"required"`
	Protected   []string `yaml:"protected_globs,omitempty"`
	ClientPaths []string `yaml:"client_paths,omitempty"`
	SchemaPaths []string `yaml:"schema_paths,omitempty"`
	TestPaths   []string `yaml:"test_paths,omitempty"`
}

// DatabaseConfig holds the Postgres connection URL, passed through as
// given, and the connection-pool settings.
type DatabaseConfig struct {
	URL             string        `yaml:"database_url" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty" validate:"omitempty,min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty" validate:"omitempty,min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time,omitempty"`
}

// DispatchConfig controls the dispatcher's concurrency budget.
type DispatchConfig struct {
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions,omitempty" validate:"omitempty,min=1"`
}

// SupervisorConfig controls the supervisor's poll loop, timeouts, and
// backoff.
type SupervisorConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds,omitempty" validate:"omitempty,min=1"`
	SessionTimeoutMinutes int `yaml:"session_timeout_minutes,omitempty" validate:"omitempty,min=1"`
	MaxUnknownCIPolls     int `yaml:"max_unknown_ci_polls,omitempty" validate:"omitempty,min=1"`
	BackoffCapSeconds     int `yaml:"backoff_cap_seconds,omitempty" validate:"omitempty,min=1"`
}

// PollInterval returns the configured poll interval as a Duration.
func (s SupervisorConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// SessionTimeout returns the configured session wall-clock budget.
func (s SupervisorConfig) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutMinutes) * time.Minute
}

// BackoffCap returns the configured transient-retry backoff ceiling,
// defaulting to 2 minutes when unset.
func (s SupervisorConfig) BackoffCap() time.Duration {
	if s.BackoffCapSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(s.BackoffCapSeconds) * time.Second
}

// MaxUnknown returns the configured consecutive-unknown-CI-poll ceiling,
// defaulting to 5 (spec §4.6/§4.7) when unset.
func (s SupervisorConfig) MaxUnknown() int {
	if s.MaxUnknownCIPolls <= 0 {
		return 5
	}
	return s.MaxUnknownCIPolls
}

// Config is the umbrella configuration object for the engine. Unknown
// YAML keys are rejected at parse time (see loader.go), per spec §6.
type Config struct {
	configDir string

	Database   DatabaseConfig   `yaml:"database"`
	AgentAPIKey string          `yaml:"agent_api_key" validate:"required"`
	GitToken    string          `yaml:"git_token" validate:"required"`
	SyncEnabled bool            `yaml:"sync_enabled"`

	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Supervisor SupervisorConfig `yaml:"supervisor"`

	TelemetryWindowDays int      `yaml:"telemetry_window_days,omitempty" validate:"omitempty,min=1"`
	ProtectedPathGlobs  []string `yaml:"protected_path_globs,omitempty"`

	RepoConventions []RepoConvention `yaml:"repo_conventions,omitempty"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }

// RepoConventionFor returns the repo convention for a consumer, or false
// if none is configured.
func (c *Config) RepoConventionFor(consumer string) (RepoConvention, bool) {
	for _, rc := range c.RepoConventions {
		if rc.Consumer == consumer {
			return rc, true
		}
	}
	return RepoConvention{}, false
}
