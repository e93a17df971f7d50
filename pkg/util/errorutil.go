package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes console errors.
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewSessionExpired(message string) error {
	return NewDomainError("SESSION_EXPIRED", message, http.StatusUnauthorized, nil)
}

// NewMalformedToken wraps a token decode failure.
func NewMalformedToken(err error) error {
	return &DomainError{
		Code:       "MALFORMED_TOKEN",
		Message:    "malformed session token",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

// NewUpstreamError records a non-2xx answer from the remote API. The original
// status is kept so callers can distinguish 401/403 from other failures.
func NewUpstreamError(status int, message string, details map[string]any) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &DomainError{
		Code:       upstreamCode(status),
		Message:    message,
		HTTPStatus: status,
		Details:    details,
	}
}

func NewUnavailable(message string, err error) error {
	return &DomainError{
		Code:       "DEPENDENCY_UNAVAILABLE",
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func upstreamCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	}
	if status >= 400 && status < 500 {
		return "UPSTREAM_REJECTED"
	}
	return "UPSTREAM_ERROR"
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// StatusOf reports the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus
	}
	return 0
}

func MapError(err error) error {
	return ToDomainError(err)
}
