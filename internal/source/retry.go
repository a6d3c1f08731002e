package source

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/repodeploy/internal/retry"
)

// retrying retries the remote calls of a Source according to a retry policy.
type retrying struct {
	Source
	policy retry.Policy
	logger *slog.Logger
}

// WithRetry wraps s so that Current and Fetch are retried on errors classified
// as retryable. A policy with no retries returns s unchanged.
func WithRetry(s Source, p retry.Policy, logger *slog.Logger) Source {
	if !p.Enabled() {
		return s
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{Source: s, policy: p, logger: logger}
}

type currentResult struct {
	version Version
	found   bool
}

type fetchResult struct {
	artifact Artifact
	found    bool
}

func (r *retrying) Current(ctx context.Context) (Version, bool, error) {
	res, err := retry.Do(ctx, r.policy, r.logger, r.Kind().String()+" current", func(ctx context.Context) (currentResult, error) {
		v, found, err := r.Source.Current(ctx)
		return currentResult{v, found}, err
	})
	return res.version, res.found, err
}

func (r *retrying) Fetch(ctx context.Context) (Artifact, bool, error) {
	res, err := retry.Do(ctx, r.policy, r.logger, r.Kind().String()+" fetch", func(ctx context.Context) (fetchResult, error) {
		a, found, err := r.Source.Fetch(ctx)
		return fetchResult{a, found}, err
	})
	return res.artifact, res.found, err
}
