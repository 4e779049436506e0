// Package apierror defines the closed set of API error constructors and
// the wire envelope they serialize to.
package apierror

import "net/http"

// Error is the single error type every handler and service returns for any
// condition the HTTP layer needs to render specially. It satisfies the
// standard error interface.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// WithDetails attaches a details bag and returns the same error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_request", Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "forbidden", Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: "conflict", Message: msg}
}

// Validation reports one or more field-level validation failures. fields
// becomes the details bag verbatim.
func Validation(msg string, fields map[string]any) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: "validation", Message: msg, Details: fields}
}

// TooManyRequests reports throttling; retryAfterSeconds is surfaced in
// details so clients can back off correctly.
func TooManyRequests(retryAfterSeconds int) *Error {
	return &Error{
		Status:  http.StatusTooManyRequests,
		Code:    "too_many_requests",
		Message: "rate limit exceeded",
		Details: map[string]any{"retry_after_seconds": retryAfterSeconds},
	}
}

func Internal(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Message: msg}
}

// Envelope is the wire shape: {"error":{"code","message","details"}}.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

type EnvelopeBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToEnvelope converts any error into the wire envelope, coercing non-Error
// values into an opaque internal error so handlers never leak raw Go error
// strings to clients.
func ToEnvelope(err error) (int, Envelope) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = Internal("internal server error")
	}
	return apiErr.Status, Envelope{Error: EnvelopeBody{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}}
}
