// Package gwerrors defines the gateway's error taxonomy and the HTTP status
// / body mapping applied at the outermost handler layer.
package gwerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates the five gateway error categories.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindUnauthorized        Kind = "unauthorized"
	KindServerMisconfigured Kind = "server_error"
	KindBadGateway          Kind = "bad_gateway"
	KindUpstreamError       Kind = "upstream_error"
)

// Error is the gateway's uniform error type. Handlers type-switch (via
// errors.As) on *Error to decide the response status and body; anything
// else is treated as an unexpected 500.
type Error struct {
	Kind       Kind
	Message    string
	Status     int             // non-zero only for UpstreamError, echoes the upstream status
	Body       json.RawMessage // non-nil only for UpstreamError, the upstream's own error body
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code a handler should write for e.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindServerMisconfigured:
		return http.StatusInternalServerError
	case KindBadGateway:
		return http.StatusBadGateway
	case KindUpstreamError:
		if e.Status != 0 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// InvalidRequest builds a 400 error: malformed body, missing model/messages,
// or a conversion that yields an empty input list.
func InvalidRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a 401 error for a missing or unrecognized bearer token.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// ServerMisconfigured builds a 500 error for missing or malformed required
// configuration.
func ServerMisconfigured(format string, args ...interface{}) *Error {
	return &Error{Kind: KindServerMisconfigured, Message: fmt.Sprintf(format, args...)}
}

// BadGateway builds a 502 error: exhausted upstream sweep, a confirmed
// empty event stream, or buffered-SSE overflow.
func BadGateway(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadGateway, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a non-retryable upstream response, preserving its
// original status and body so the client sees what the upstream actually
// said.
func UpstreamError(status int, body []byte) *Error {
	e := &Error{Kind: KindUpstreamError, Status: status, Message: "upstream returned an error"}
	if json.Valid(body) {
		e.Body = json.RawMessage(body)
	}
	return e
}

// Code returns the §7 error-code vocabulary value for e's Kind
// (bad_request, unauthorized, not_found, bad_gateway, server_error).
// NotFound has no dedicated Kind (the httpapi layer writes it directly
// for unmatched routes), so it is not reachable from here.
func (e *Error) Code() string {
	switch e.Kind {
	case KindInvalidRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadGateway, KindUpstreamError:
		return "bad_gateway"
	default:
		return "server_error"
	}
}

// As extracts a *Error from err, for callers that want to branch on Kind.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// JSONBody renders the uniform error payload the httpapi layer writes.
// When e wraps an upstream body, that body is returned verbatim; otherwise
// a {"error":{"message","type","code"}} envelope is built.
func (e *Error) JSONBody() json.RawMessage {
	if e.Body != nil {
		return e.Body
	}
	body, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": e.Message,
			"type":    "invalid_request_error",
			"code":    e.Code(),
		},
	})
	return body
}
