package config

import "strings"

// RetryBackoffMode is the value of retry_backoff.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffModes = map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"constant":    RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
	"exp":         RetryBackoffExponential,
}

// NormalizeRetryBackoff maps a retry_backoff value to its mode, or "" when unrecognised.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffModes[strings.ToLower(strings.TrimSpace(raw))]
}
