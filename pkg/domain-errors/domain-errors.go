package domainerrors

import "errors"

// Code represents a gateway error category independent of transport layer.
// Codes describe what went wrong with the forwarded request, not which HTTP
// status the caller eventually sees.
type Code string

const (
	CodeBadRequest       Code = "bad_request"
	CodeValidation       Code = "validation_failed"
	CodeMethodNotAllowed Code = "method_not_allowed"
	CodeInternal         Code = "internal_error"

	// Request validation codes. Each one is the client's fault.
	CodeMissingPayload       Code = "missing_payload"
	CodeMissingDestination   Code = "missing_destination"
	CodeMissingMessage       Code = "missing_message"
	CodeUnsupportedMediaType Code = "unsupported_media_type"
	CodePayloadTooLarge      Code = "payload_too_large"

	// Upstream codes. These never escape as HTTP failures.
	CodeNetwork      Code = "network_error"
	CodeUpstreamHTTP Code = "upstream_http_error"
)

// Error wraps gateway failures with a stable code.
// It is transport-agnostic and can be used across service, forwarder and handler layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation reports whether err is a client-side request problem that
// must be answered with 400 rather than folded into the response envelope.
func IsValidation(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeBadRequest, CodeValidation, CodeMissingPayload, CodeMissingDestination,
		CodeMissingMessage, CodeUnsupportedMediaType, CodePayloadTooLarge:
		return true
	default:
		return false
	}
}
