// Package retry retries transport calls that fail with a retryable classified error.
package retry

import (
	"time"

	"git.home.luguber.info/inful/repodeploy/internal/config"
)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Policy describes how often and how patiently a failed call is retried.
// The zero value never retries.
type Policy struct {
	Backoff   config.RetryBackoffMode
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Retries   int // attempts after the first failure
}

// NewPolicy builds a policy, substituting defaults for zero or unknown values.
// A base delay larger than maxDelay is clamped.
func NewPolicy(backoff config.RetryBackoffMode, baseDelay, maxDelay time.Duration, retries int) Policy {
	p := Policy{
		Backoff:   config.RetryBackoffLinear,
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
		Retries:   max(retries, 0),
	}
	if normalized := config.NormalizeRetryBackoff(string(backoff)); normalized != "" {
		p.Backoff = normalized
	}
	if baseDelay > 0 {
		p.BaseDelay = baseDelay
	}
	if maxDelay > 0 {
		p.MaxDelay = maxDelay
	}
	p.BaseDelay = min(p.BaseDelay, p.MaxDelay)
	return p
}

// FromConfig reads retry_max, retry_backoff, retry_initial and retry_max_delay.
func FromConfig(cfg *config.Config) Policy {
	return NewPolicy(cfg.RetryBackoff, cfg.RetryInitial, cfg.RetryMaxDelay, cfg.RetryMax)
}

// Enabled reports whether the policy retries at all.
func (p Policy) Enabled() bool { return p.Retries > 0 }

// Delay is the wait before retry n (1-based), capped at MaxDelay.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Backoff {
	case config.RetryBackoffFixed:
		d = p.BaseDelay
	case config.RetryBackoffExponential:
		if n > 30 {
			return p.MaxDelay
		}
		d = p.BaseDelay << (n - 1)
	default:
		d = p.BaseDelay * time.Duration(n)
	}
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
