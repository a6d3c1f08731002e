package errors

// ErrorCategory routes an error to an exit code, a log level and a retry decision.
type ErrorCategory string

// Categories raised while reading configuration or talking to the source.
const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryNetwork    ErrorCategory = "network"
	CategoryTransport  ErrorCategory = "transport"
	CategoryGit        ErrorCategory = "git"
	CategoryUnpack     ErrorCategory = "unpack"
)

// Categories raised on the node while applying an update.
const (
	CategoryHook        ErrorCategory = "hook"
	CategoryActivation  ErrorCategory = "activation"
	CategoryPersistence ErrorCategory = "persistence"
	CategoryFileSystem  ErrorCategory = "filesystem"
	CategoryRuntime     ErrorCategory = "runtime"
	CategoryDaemon      ErrorCategory = "daemon"
	CategoryInternal    ErrorCategory = "internal"
)

type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

type classification struct {
	severity ErrorSeverity
	retry    RetryStrategy
}

// Categories not listed here default to SeverityError and RetryNever.
var categoryDefaults = map[ErrorCategory]classification{
	CategoryConfig:     {SeverityFatal, RetryNever},
	CategoryValidation: {SeverityFatal, RetryNever},
	CategoryAuth:       {SeverityError, RetryUserAction},
	CategoryNetwork:    {SeverityError, RetryBackoff},
	CategoryGit:        {SeverityError, RetryBackoff},
	CategoryDaemon:     {SeverityFatal, RetryNever},
	CategoryInternal:   {SeverityFatal, RetryNever},
}

func defaultsFor(category ErrorCategory) classification {
	if c, ok := categoryDefaults[category]; ok {
		return c
	}
	return classification{SeverityError, RetryNever}
}

// Field is a piece of structured context carried by a ClassifiedError.
type Field struct {
	Key   string
	Value any
}
