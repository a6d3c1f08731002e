package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCycleID    = "cycle_id"
	KeyOutcome    = "outcome"
	KeyVersion    = "version"
	KeyPrevious   = "previous_version"
	KeyPath       = "path"
	KeyTarget     = "target"
	KeyURL        = "url"
	KeyKind       = "source_kind"
	KeyIdentity   = "identity"
	KeyHook       = "hook"
	KeyPhase      = "phase"
	KeyExitCode   = "exit_code"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func CycleID(id string) slog.Attr      { return slog.String(KeyCycleID, id) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func Previous(v string) slog.Attr      { return slog.String(KeyPrevious, v) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Target(p string) slog.Attr        { return slog.String(KeyTarget, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func Identity(id string) slog.Attr     { return slog.String(KeyIdentity, id) }
func Hook(path string) slog.Attr       { return slog.String(KeyHook, path) }
func Phase(p string) slog.Attr         { return slog.String(KeyPhase, p) }
func ExitCode(c int) slog.Attr         { return slog.Int(KeyExitCode, c) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }

// Commit shortens a commit id to eight characters for log readability.
func Commit(id string) slog.Attr {
	if len(id) > 8 {
		id = id[:8]
	}
	return slog.String(KeyCommit, id)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
