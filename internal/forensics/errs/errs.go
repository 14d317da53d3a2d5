// Package errs defines the error taxonomy used across the forensic
// pipeline: configuration, provider-transient, provider-permanent,
// deadline, and analysis-internal.
package errs

import "fmt"

// Kind classifies an error for the purposes of the pipeline's recovery
// policy: only Configuration and Deadline errors reject the whole request.
type Kind int

const (
	Configuration Kind = iota
	ProviderTransient
	ProviderPermanent
	Deadline
	AnalysisInternal
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case ProviderTransient:
		return "provider_transient"
	case ProviderPermanent:
		return "provider_permanent"
	case Deadline:
		return "deadline"
	case AnalysisInternal:
		return "analysis_internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// recovery policy without string matching.
type Error struct {
	Kind   Kind
	Op     string // component/operation that raised it, e.g. "fetcher.fetch"
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: Configuration, Op: op, Err: fmt.Errorf(format, args...)}
}

func Transient(op string, err error) *Error {
	return &Error{Kind: ProviderTransient, Op: op, Err: err}
}

func Permanent(op string, err error) *Error {
	return &Error{Kind: ProviderPermanent, Op: op, Err: err}
}

func DeadlineExceeded(op string, err error) *Error {
	return &Error{Kind: Deadline, Op: op, Err: err}
}

func Internal(op string, err error) *Error {
	return &Error{Kind: AnalysisInternal, Op: op, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
