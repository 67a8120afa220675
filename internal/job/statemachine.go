package job

import "github.com/MadhuvanthiSriPad/api-core/internal/model"

// transitions enumerates every legal edge in the job state machine (spec
// §4.6). Terminal states (model.JobState.Terminal) have no outgoing
// edges; any attempt to leave one is a state machine violation.
var transitions = map[model.JobState][]model.JobState{
	model.JobQueued: {
		model.JobRunning,
		model.JobSkippedDuplicate, // deduped against an in-flight job for the same fingerprint
		model.JobNeedsHuman,       // guardrail trip before the session was even accepted
		model.JobFailed,           // agent session create returned a permanent error
	},
	model.JobRunning: {
		model.JobPROpened,
		model.JobFailed,     // agent reports an unrecoverable error
		model.JobNeedsHuman, // guardrail trip before a PR was opened
	},
	model.JobPROpened: {
		model.JobGreen,
		model.JobNeedsHuman, // CI failure, unknown after the poll cap, or a protected-path hit
	},
}

// ValidTransition reports whether a job may move from `from` to `to`.
func ValidTransition(from, to model.JobState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
