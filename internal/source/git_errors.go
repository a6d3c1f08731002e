package source

import (
	stderrors "errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

// classifyGitError translates go-git errors into ClassifiedErrors.
func classifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	builder := errors.GitError("git operation failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("url", url)

	l := strings.ToLower(err.Error())
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		strings.Contains(l, "authentication failed"),
		strings.Contains(l, "invalid credentials"):
		builder.WithCategory(errors.CategoryAuth).UserAction()
	case stderrors.Is(err, transport.ErrRepositoryNotFound),
		stderrors.Is(err, plumbing.ErrReferenceNotFound),
		strings.Contains(l, "couldn't find remote ref"):
		builder.WithCategory(errors.CategoryNotFound).WithRetry(errors.RetryNever)
	case strings.Contains(l, "remote hung up"),
		strings.Contains(l, "connection reset"),
		strings.Contains(l, "timeout"),
		strings.Contains(l, "no route to host"),
		strings.Contains(l, "connection refused"):
		builder.WithCategory(errors.CategoryNetwork).Retryable()
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		builder.WithCategory(errors.CategoryConfig).WithRetry(errors.RetryNever)
	case op == "reset" || op == "checkout" || op == "worktree":
		builder.WithRetry(errors.RetryNever)
	}
	return builder.Build()
}
