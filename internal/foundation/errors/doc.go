// Package errors classifies failures so the CLI can choose an exit code and the
// source layer can decide whether to retry.
//
//	err := errors.TransportError("head object failed").
//		WithCause(cause).
//		WithContext("url", sourceURL).
//		Retryable().
//		Build()
package errors
