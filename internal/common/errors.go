package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WithDetails attaches a details payload rendered alongside the error.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WriteAppError renders err when it wraps an AppError and reports whether it did.
func WriteAppError(w http.ResponseWriter, err error, fallbackStatus int) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = fallbackStatus
	}
	code := appErr.Code
	if code == "" {
		code = "BAD_REQUEST"
	}
	JSONError(w, status, code, appErr.Message, appErr.Details)
	return true
}
