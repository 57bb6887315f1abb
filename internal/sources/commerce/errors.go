package commerce

import (
	"fmt"
	"strings"
)

// graphErrorCodeThrottled is the extension code the commerce API sets when a
// request exceeds the query cost budget. Throttled calls succeed on retry.
const graphErrorCodeThrottled = "THROTTLED"

// Error is a failure reported inside a GraphQL response body. The transport
// succeeded, so categorisation comes from error codes and user errors
// instead of HTTP status.
type Error struct {
	op        string
	messages  []string
	transient bool
	notFound  bool
	conflict  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("commerce: %s: %s", e.op, strings.Join(e.messages, "; "))
}

func (e *Error) IsTransient() bool { return e.transient }
func (e *Error) IsNotFound() bool  { return e.notFound }
func (e *Error) IsConflict() bool  { return e.conflict }

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

func newGraphError(op string, errs []graphQLError) *Error {
	e := &Error{op: op}
	for _, ge := range errs {
		e.messages = append(e.messages, ge.Message)
		if ge.Extensions.Code == graphErrorCodeThrottled {
			e.transient = true
		}
	}
	return e
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func newUserError(op string, errs []userError) *Error {
	e := &Error{op: op, conflict: true}
	for _, ue := range errs {
		msg := ue.Message
		if len(ue.Field) > 0 {
			msg = strings.Join(ue.Field, ".") + ": " + msg
		}
		e.messages = append(e.messages, msg)
		// The API reports writes against deleted products as a user
		// error rather than an HTTP 404.
		if strings.Contains(strings.ToLower(ue.Message), "not found") ||
			strings.Contains(strings.ToLower(ue.Message), "does not exist") {
			e.notFound = true
			e.conflict = false
		}
	}
	return e
}
