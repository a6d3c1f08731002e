package errors

import (
	stderrors "errors"
	"slices"
	"strings"
)

// ClassifiedError is an error tagged with a category, a severity and a retry hint.
// Values are immutable once built.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	fields   []Field
}

func (e *ClassifiedError) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.category))
	b.WriteString("] ")
	b.WriteString(e.message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Cause() error                 { return e.cause }

// Fields returns the attached context in the order it was added.
func (e *ClassifiedError) Fields() []Field { return slices.Clone(e.fields) }

// Field returns the most recent value stored under key.
func (e *ClassifiedError) Field(key string) (any, bool) {
	for i := len(e.fields) - 1; i >= 0; i-- {
		if e.fields[i].Key == key {
			return e.fields[i].Value, true
		}
	}
	return nil, false
}

// WithContext returns a copy of e with one more field.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	c := *e
	c.fields = append(slices.Clone(e.fields), Field{Key: key, Value: value})
	return &c
}

// Is matches a ClassifiedError with the same category and message.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// CanRetry is false for RetryNever and RetryUserAction.
func (e *ClassifiedError) CanRetry() bool { return e.retry == RetryBackoff }

// AsClassified returns the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	ok := stderrors.As(err, &classified)
	return classified, ok
}

func IsClassified(err error) bool {
	_, ok := AsClassified(err)
	return ok
}

// HasCategory reports whether the first ClassifiedError in err's chain has category.
func HasCategory(err error, category ErrorCategory) bool {
	c, ok := AsClassified(err)
	return ok && c.category == category
}

// CategoryOf returns the category of err, or CategoryInternal when it is unclassified.
func CategoryOf(err error) ErrorCategory {
	if c, ok := AsClassified(err); ok {
		return c.category
	}
	return CategoryInternal
}

func IsRetryable(err error) bool {
	c, ok := AsClassified(err)
	return ok && c.CanRetry()
}
