// Package errors implements the CodePrism error taxonomy from
// spec.md §7: a closed set of error kinds, each carrying a severity,
// wrapping an underlying cause.
package errors

import (
	"fmt"
	"time"
)

// Kind is the closed taxonomy of error kinds named in spec.md §7.
type Kind string

const (
	KindParse         Kind = "parse"
	KindIo             Kind = "io"
	KindProtocol       Kind = "protocol"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConfiguration  Kind = "configuration"
	KindExecution      Kind = "execution"
	KindResource       Kind = "resource"
	KindCancellation   Kind = "cancellation"
	KindSecurity       Kind = "security"
)

// Severity ranks how serious an error is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Error is a CodePrism error: a kind, a severity, an operation name,
// optional file context, and the wrapped cause.
type Error struct {
	Kind       Kind
	Severity   Severity
	Op         string
	FilePath   string
	Underlying error
	Timestamp  time.Time
}

// New creates an Error of the given kind and severity for operation op,
// wrapping err.
func New(kind Kind, severity Severity, op string, err error) *Error {
	return &Error{Kind: kind, Severity: severity, Op: op, Underlying: err, Timestamp: time.Now()}
}

// WithFile attaches file context and returns the same error for chaining.
func (e *Error) WithFile(path string) *Error {
	e.FilePath = path
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s[%s] %s (%s): %v", e.Kind, e.Severity, e.Op, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s[%s] %s: %v", e.Kind, e.Severity, e.Op, e.Underlying)
}

// Unwrap supports errors.Is/errors.As from the standard library.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// retryableKinds mirrors spec.md §4.13: "is_retryable(e) returns true
// only for Connection/Network/Io/Performance plus explicitly-retryable
// Transport/Auth variants." CodePrism's taxonomy collapses
// Connection/Network/Performance into Resource/Io, so the retryable
// set below is the corresponding subset of Kind.
var retryableKinds = map[Kind]bool{
	KindIo:       true,
	KindResource: true,
}

// IsRetryable reports whether err (a *Error or wrapping one) belongs
// to a retryable kind.
func IsRetryable(err error) bool {
	var e *Error
	if as(err, &e) {
		return retryableKinds[e.Kind]
	}
	return false
}

// as is a tiny local copy of errors.As's unwrap loop, avoiding an
// import alias collision with this package's own name "errors".
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
