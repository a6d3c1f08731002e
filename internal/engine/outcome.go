package engine

import (
	"time"

	"git.home.luguber.info/inful/repodeploy/internal/source"
)

// Outcome classifies how an update cycle ended.
type Outcome string

const (
	// OutcomeUnchanged means the remote version equals the active one.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeUnavailable means the remote reported no version.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeSkipped means the fetch produced nothing to activate.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeBlocked means a pre-update hook failed; nothing changed.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeCommitted means the new version is active and recorded.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRolledBack means post-update hooks failed and the previous content was restored.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeUnstable means post-update hooks failed with nothing to restore.
	OutcomeUnstable Outcome = "unstable"
	// OutcomeFailed means the cycle aborted on an error before or during activation.
	OutcomeFailed Outcome = "failed"
)

// Changed reports whether the outcome involved an activation attempt or error
// worth telling anyone about.
func (o Outcome) Changed() bool {
	return o != OutcomeUnchanged && o != OutcomeUnavailable
}

// Result summarizes one update cycle.
type Result struct {
	ID       string
	Outcome  Outcome
	Version  source.Version // version seen or fetched during the cycle
	Previous source.Version // version active when the cycle started
	Err      error
	Duration time.Duration
}
