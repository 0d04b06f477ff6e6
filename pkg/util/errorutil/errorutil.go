package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError is the shape every failed request is rendered from.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Wrap attaches cause to a DomainError. Message is what clients see; the
// cause only reaches logs.
func Wrap(cause error, code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Err: cause}
}

// NewValidationError reports a malformed request.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInternalError hides err behind a generic 500.
func NewInternalError(err error) *DomainError {
	return Wrap(err, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}

// FromStatus builds a DomainError for a bare HTTP status, such as the ones
// the router produces for unknown routes.
func FromStatus(status int, message string) *DomainError {
	if message == "" {
		message = http.StatusText(status)
	}
	return NewDomainError(StatusCode(status), message, status, nil)
}

// ToDomainError converts generic errors to DomainError. Anything that is not
// already a DomainError becomes an opaque internal error.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewInternalError(err)
}

// StatusCode returns a stable error code for a bare HTTP status.
func StatusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestTimeout:
		return "REQUEST_TIMEOUT"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		if status >= 500 {
			return "INTERNAL_ERROR"
		}
		return "REQUEST_FAILED"
	}
}
