package storage

import (
	"context"
	"errors"
	"net/http"

	"github.com/swiftgate/swiftgate/internal/config"
)

// Config alias for storage configuration
type Config = config.StorageConfig

// Common storage errors
var (
	ErrObjectNotFound         = NewError("ObjectNotFound", "The specified object does not exist")
	ErrContainerNotFound      = NewError("ContainerNotFound", "The specified container does not exist")
	ErrUnauthorized           = NewError("Unauthorized", "The backend rejected the credentials")
	ErrForbidden              = NewError("Forbidden", "The backend denied access")
	ErrConflict               = NewError("Conflict", "The backend reported a conflicting operation")
	ErrVersioningNotSupported = NewError("VersioningNotSupported", "The backend does not support object versions")
	ErrBackendUnavailable     = NewError("BackendUnavailable", "The storage backend could not be reached")
	ErrBackendFailure         = NewError("BackendFailure", "The storage backend returned an unexpected status")
	ErrInvalidPath            = NewError("InvalidPath", "The specified path is invalid")
)

// StorageError represents a storage-specific error
type StorageError struct {
	Code       string
	Message    string
	StatusCode int // backend HTTP status, 0 when no response was received
	Cause      error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is matches storage errors by code so wrapped instances compare equal to the sentinels
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new storage error
func NewError(code, message string) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new storage error with underlying cause
func NewErrorWithCause(code, message string, cause error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// wrap copies a sentinel and attaches the backend status and cause
func wrap(sentinel *StorageError, status int, cause error) *StorageError {
	return &StorageError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NoResponse reports whether err means the backend never answered, as opposed
// to answering with an error status
func NoResponse(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Code == ErrBackendUnavailable.Code && se.StatusCode == 0
}

// errorForStatus maps a non-2xx backend status to a storage error.
// notFound selects the sentinel returned for 404.
func errorForStatus(status int, notFound *StorageError, cause error) error {
	switch {
	case status == http.StatusNotFound:
		return wrap(notFound, status, cause)
	case status == http.StatusUnauthorized:
		return wrap(ErrUnauthorized, status, cause)
	case status == http.StatusForbidden:
		return wrap(ErrForbidden, status, cause)
	case status == http.StatusConflict:
		return wrap(ErrConflict, status, cause)
	case status == http.StatusServiceUnavailable:
		return wrap(ErrBackendUnavailable, status, cause)
	default:
		return wrap(ErrBackendFailure, status, cause)
	}
}

type transIDKey struct{}

// WithTransID attaches a transaction id that backends forward with each call
func WithTransID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transIDKey{}, id)
}

// TransIDFromContext returns the transaction id set by WithTransID
func TransIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(transIDKey{}).(string)
	return id
}
