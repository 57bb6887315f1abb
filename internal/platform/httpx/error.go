package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categorises transport failures so callers can decide between retry,
// skip and abort without inspecting status codes.
type Error struct {
	op        string
	status    int
	err       error
	transient bool
	notFound  bool
	conflict  bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.op, e.status, e.err)
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Status returns the HTTP status code, or zero when the request never
// produced a response.
func (e *Error) Status() int {
	if e == nil {
		return 0
	}
	return e.status
}

// IsNotFound reports whether the remote record no longer exists.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsTransient reports whether the failure is retryable.
func (e *Error) IsTransient() bool {
	return e != nil && e.transient
}

// IsConflict reports whether the remote rejected a conflicting write.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

func newStatusError(op string, status int, err error) *Error {
	e := &Error{op: op, status: status, err: err}
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		e.notFound = true
	case status == http.StatusConflict:
		e.conflict = true
	case status == http.StatusTooManyRequests || status >= 500:
		e.transient = true
	}
	return e
}

func newTransportError(op string, err error) *Error {
	return &Error{op: op, err: err, transient: true}
}

// IsNotFound reports whether any error in the chain marks a missing record.
func IsNotFound(err error) bool {
	var httpErr *Error
	return errors.As(err, &httpErr) && httpErr.IsNotFound()
}

// IsTransient reports whether any error in the chain is retryable.
func IsTransient(err error) bool {
	var httpErr *Error
	return errors.As(err, &httpErr) && httpErr.IsTransient()
}

// IsConflict reports whether any error in the chain marks a conflicting write.
func IsConflict(err error) bool {
	var httpErr *Error
	return errors.As(err, &httpErr) && httpErr.IsConflict()
}
