package errors

import "slices"

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error in category with that category's default severity and retry hint.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	d := defaultsFor(category)
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: d.severity,
		retry:    d.retry,
		message:  message,
	}}
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

// WithCategory reclassifies the error without touching severity or retry hint.
func (b *ErrorBuilder) WithCategory(category ErrorCategory) *ErrorBuilder {
	b.err.category = category
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.fields = append(b.err.fields, Field{Key: key, Value: value})
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder      { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Retryable() *ErrorBuilder  { return b.WithRetry(RetryBackoff) }
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the error. The builder may be reused afterwards.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.fields = slices.Clone(b.err.fields)
	return &e
}

func ConfigError(message string) *ErrorBuilder      { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder  { return NewError(CategoryValidation, message) }
func AuthError(message string) *ErrorBuilder        { return NewError(CategoryAuth, message) }
func NetworkError(message string) *ErrorBuilder     { return NewError(CategoryNetwork, message) }
func TransportError(message string) *ErrorBuilder   { return NewError(CategoryTransport, message) }
func GitError(message string) *ErrorBuilder         { return NewError(CategoryGit, message) }
func UnpackError(message string) *ErrorBuilder      { return NewError(CategoryUnpack, message) }
func HookError(message string) *ErrorBuilder        { return NewError(CategoryHook, message) }
func ActivationError(message string) *ErrorBuilder  { return NewError(CategoryActivation, message) }
func PersistenceError(message string) *ErrorBuilder { return NewError(CategoryPersistence, message) }
func FileSystemError(message string) *ErrorBuilder  { return NewError(CategoryFileSystem, message) }
func DaemonError(message string) *ErrorBuilder      { return NewError(CategoryDaemon, message) }
func InternalError(message string) *ErrorBuilder    { return NewError(CategoryInternal, message) }
