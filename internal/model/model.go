// Package model holds the entities shared by every pipeline stage:
// ContractVersion, ChangeEntry, ClassifiedChange, ChangeSet, ServiceEdge,
// TelemetrySample, Impact, Bundle, Job, and AuditEntry.
package model

import "time"

// ContractVersion is an immutable, captured OpenAPI document for one
// service. Created by ingest; retained as the "last-known" per service.
type ContractVersion struct {
	ServiceID   string
	VersionID   string
	Document    []byte // raw OpenAPI document (YAML or JSON), as captured
	Hash        string // content hash, used to detect no-op re-ingests
	CapturedAt  time.Time
}

// ChangeKind enumerates the differ's change taxonomy (spec §3).
type ChangeKind string

const (
	KindAdded            ChangeKind = "added"
	KindRemoved          ChangeKind = "removed"
	KindRenamed          ChangeKind = "renamed"
	KindTypeChanged      ChangeKind = "type-changed"
	KindRequiredAdded    ChangeKind = "required-added"
	KindRequiredRemoved  ChangeKind = "required-removed"
	KindDeprecated       ChangeKind = "deprecated"
	KindEnumNarrowed     ChangeKind = "enum-narrowed"
	KindDefaultChanged   ChangeKind = "default-changed"
	KindOther            ChangeKind = "other"
)

// ChangeLocation enumerates where in an operation a ChangeEntry occurred.
type ChangeLocation string

const (
	LocationRequest  ChangeLocation = "request"
	LocationResponse ChangeLocation = "response"
	LocationHeader   ChangeLocation = "header"
	LocationParam    ChangeLocation = "param"
)

// ChangeEntry is one observable semantic delta between two contract
// versions. Produced by the differ; lives for one run.
type ChangeEntry struct {
	Path     string // route template, e.g. "/sessions/{id}"
	Method   string // upper-case HTTP method
	Kind     ChangeKind
	Location ChangeLocation
	Field    string // dotted field path within the location, if applicable
	Before   string // human-readable "before" value
	After    string // human-readable "after" value
}

// Severity is the classifier's severity scale.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank orders Severity values for rollup comparisons.
var severityRank = map[Severity]int{
	SeverityLow:    0,
	SeverityMedium: 1,
	SeverityHigh:   2,
}

// Rank returns the severity's ordinal rank, higher is more severe.
func (s Severity) Rank() int { return severityRank[s] }

// Max returns the more severe of two severities.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// ClassifiedChange is a ChangeEntry annotated with severity, breaking
// status, and the rationale for that classification.
type ClassifiedChange struct {
	ChangeEntry
	Severity   Severity
	IsBreaking bool
	Rationale  string
}

// ChangeSet is the full set of classified changes between two versions of
// one producer's contract, plus its rollup severity/breaking status. One
// per run.
type ChangeSet struct {
	ProducerService string
	FromVersion     string
	ToVersion       string
	Changes         []ClassifiedChange
}

// RollupSeverity returns the maximum severity across all changes, or
// SeverityLow if the set is empty.
func (cs ChangeSet) RollupSeverity() Severity {
	rollup := SeverityLow
	for _, c := range cs.Changes {
		rollup = rollup.Max(c.Severity)
	}
	return rollup
}

// RollupIsBreaking reports whether any change in the set is breaking.
func (cs ChangeSet) RollupIsBreaking() bool {
	for _, c := range cs.Changes {
		if c.IsBreaking {
			return true
		}
	}
	return false
}

// BreakingChanges returns the subset of Changes with IsBreaking = true.
func (cs ChangeSet) BreakingChanges() []ClassifiedChange {
	out := make([]ClassifiedChange, 0, len(cs.Changes))
	for _, c := range cs.Changes {
		if c.IsBreaking {
			out = append(out, c)
		}
	}
	return out
}

// ServiceEdge is a declared producer->consumer dependency from the
// external service map. Read-only.
type ServiceEdge struct {
	Producer string
	Consumer string
	Declared bool
}

// Confidence describes how an Impact's inclusion was justified.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TelemetrySample is one observed route-level call count from the
// external telemetry feed over the configured window. Read-only.
type TelemetrySample struct {
	Consumer      string
	Producer      string
	Method        string
	RouteTemplate string
	Calls7d       int64
	Confidence    Confidence
}

// ImpactRoute is one (method, route) pair touched by a change, annotated
// with its observed call volume and confidence.
type ImpactRoute struct {
	Method     string
	Route      string
	Calls7d    int64
	Confidence Confidence
}

// Impact is a derived, per-run record of one consumer affected by a
// ChangeSet: which routes it calls that were touched, and which
// classified changes touch those routes.
type Impact struct {
	Consumer       string
	Producer       string
	Routes         []ImpactRoute
	TouchedChanges []ClassifiedChange
	TotalCalls7d   int64
	Confidence     Confidence
}

// IsBreaking reports whether any of the impact's touched changes are
// breaking.
func (i Impact) IsBreaking() bool {
	for _, c := range i.TouchedChanges {
		if c.IsBreaking {
			return true
		}
	}
	return false
}

// Bundle is the full remediation instruction set for one consumer
// repository, built before dispatch.
type Bundle struct {
	Consumer      string
	Producer      string
	RepoRef       string
	Prompt        string
	BreakingItems []ClassifiedChange
	TestPaths     []string
	ClientPaths   []string
	Fingerprint   string
	WaveIndex     int
}

// JobState enumerates the job state machine (spec §4.6).
type JobState string

const (
	JobQueued          JobState = "queued"
	JobRunning         JobState = "running"
	JobPROpened        JobState = "pr_opened"
	JobGreen           JobState = "green"
	JobNeedsHuman      JobState = "needs_human"
	JobFailed          JobState = "failed"
	JobSkippedDuplicate JobState = "skipped_duplicate"
)

// Terminal reports whether the state is one from which no automated
// transition is possible.
func (s JobState) Terminal() bool {
	switch s {
	case JobGreen, JobNeedsHuman, JobFailed, JobSkippedDuplicate:
		return true
	default:
		return false
	}
}

// Job tracks one dispatched bundle's lifecycle. Mutated only through
// recorded transitions (see internal/job).
type Job struct {
	ID                 string
	BundleFingerprint  string
	Producer           string
	Consumer           string
	WaveIndex          int
	SessionID          string
	State              JobState
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Attempts           int
	LastDetail         string
	PRUrl              string
	CIStatus           string
	ConsecutiveUnknown int // consecutive "unknown" CI polls, see spec §9(b)
	DispatchedAt       time.Time
}

// AuditEntry is one append-only state-transition record.
type AuditEntry struct {
	ID        int64
	JobID     string
	FromState JobState
	ToState   JobState
	Timestamp time.Time
	Detail    string
}
