// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import "errors"

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation      ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                         // Resource not found errors (404 Not Found)
	ErrorTypeConflict                         // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                         // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                      // Service unavailable errors (503 Service Unavailable)
	ErrorTypeUnauthorized                     // Missing or invalid credentials (401 Unauthorized)
	ErrorTypeForbidden                        // Authenticated but not allowed (403 Forbidden)
	ErrorTypeExternalService                  // Conferencing server failures (502 Bad Gateway)
)

// Common errors
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInternal           = errors.New("internal error")
	ErrRevisionMismatch   = errors.New("revision mismatch")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrValidationFailed   = errors.New("validation failed")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("not allowed")
	ErrInvalidAccessCode  = errors.New("invalid access code")
	ErrSessionsExhausted  = errors.New("monthly session allowance exhausted")
	ErrConferencing       = errors.New("conferencing server unavailable")
)

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// ExternalServiceError is returned when the conferencing server is unreachable
// or answers with a FAILED return code. MessageKey carries the server's
// messageKey when one was sent.
type ExternalServiceError struct {
	Call       string
	MessageKey string
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	msg := "conferencing server call " + e.Call + " failed"
	if e.MessageKey != "" {
		msg += " (" + e.MessageKey + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}

func NewUnauthorizedError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnauthorized, Message: message, Err: errors.Join(err...)}
}

func NewForbiddenError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeForbidden, Message: message, Err: errors.Join(err...)}
}

// NewExternalServiceError wraps a conferencing server failure. The returned
// DomainError unwraps to the *ExternalServiceError so callers can inspect the
// server's messageKey with errors.As.
func NewExternalServiceError(call, messageKey, message string, err error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeExternalService,
		Message: ErrConferencing.Error(),
		Err: &ExternalServiceError{
			Call:       call,
			MessageKey: messageKey,
			Message:    message,
			Err:        err,
		},
	}
}
