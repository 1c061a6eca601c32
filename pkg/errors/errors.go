// Package errors defines the sentinel errors shared by the snapshot loader and
// the HTTP layer, and maps them to status codes and stable error codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedIndex marks any structural or referential defect found
	// while loading a snapshot. A malformed snapshot is never served.
	ErrMalformedIndex      = errors.New("malformed index")
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTimeout             = errors.New("operation timed out")
)

// AppError attaches a status code and a detail message to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Malformedf builds the load-time validation error returned for any
// structural or referential defect in a snapshot.
func Malformedf(format string, args ...any) *AppError {
	return Newf(ErrMalformedIndex, http.StatusUnprocessableEntity, format, args...)
}

func NotFoundf(format string, args ...any) *AppError {
	return Newf(ErrDocumentNotFound, http.StatusNotFound, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMalformedIndex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSnapshotUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for err, suitable for API
// clients that should not parse messages.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMalformedIndex):
		return "malformed_index"
	case errors.Is(err, ErrSnapshotUnavailable):
		return "snapshot_unavailable"
	case errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
