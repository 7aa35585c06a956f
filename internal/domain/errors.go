package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the machine-readable reason attached to every denial.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration_error"
	KindValidationFailure ErrorKind = "validation_failure"
	KindLimitExceeded     ErrorKind = "limit_exceeded"
	KindTokenExpired      ErrorKind = "token_expired"
	KindInvalidToken      ErrorKind = "invalid_token"
	KindAlreadyClaimed    ErrorKind = "already_claimed"
	KindNotFound          ErrorKind = "not_found"
	KindBadRequest        ErrorKind = "bad_request"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindRateLimited       ErrorKind = "rate_limited"
	KindInternal          ErrorKind = "internal"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int            `json:"code"`
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"error"`
	Details map[string]any `json:"-"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a field that is rendered next to the error message.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Kind: KindForbidden, Message: msg}
}

// ErrRateLimited is the per-address request throttle, distinct from the monthly course limit.
func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Kind: KindRateLimited, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindBadRequest, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: msg, Err: err}
}

// ErrConfiguration reports a missing vendor credential or similar setup problem.
func ErrConfiguration(msg string) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Kind: KindConfiguration, Message: msg}
}

// ErrValidationFailure covers both request validation and vendor receipt rejections.
func ErrValidationFailure(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Kind: KindValidationFailure, Message: msg}
}

func ErrLimitExceeded(msg string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Kind: KindLimitExceeded, Message: msg}
}

// Claim flow failures. Each one maps to its own status so clients can tell
// "try again" apart from "already done".

func ErrInvalidToken(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindInvalidToken, Message: msg}
}

func ErrTokenExpired(msg string) *AppError {
	return &AppError{Code: http.StatusGone, Kind: KindTokenExpired, Message: msg}
}

func ErrAlreadyClaimed(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindAlreadyClaimed, Message: msg}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for plain errors.
func KindOf(err error) ErrorKind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}
