package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record with the id exists for the caller.
	// It is also returned when the id belongs to another user.
	ErrNotFound = errors.New("record not found")
	// ErrBackendUnavailable marks a backend that cannot be reached, timed out,
	// or is not configured. The router falls back on it.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendOperation marks a reachable backend that rejected a well formed
	// operation. The router falls back on it.
	ErrBackendOperation = errors.New("backend rejected operation")
	// ErrStorageUnavailable is returned when neither backend could serve a call.
	ErrStorageUnavailable = errors.New("unable to save or retrieve data right now")
)

// ValidationError reports missing or malformed input. It is never retried
// against another backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// BackendError wraps a backend failure with its classification, which is
// either ErrBackendUnavailable or ErrBackendOperation.
type BackendError struct {
	Backend string
	Op      Op
	Kind    error
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() []error { return []error{e.Kind, e.Err} }

func unavailable(backend string, op Op, err error) error {
	return &BackendError{Backend: backend, Op: op, Kind: ErrBackendUnavailable, Err: err}
}

func rejected(backend string, op Op, err error) error {
	return &BackendError{Backend: backend, Op: op, Kind: ErrBackendOperation, Err: err}
}

// isBackendFailure reports whether err should trigger a fallback.
func isBackendFailure(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrBackendOperation)
}

// StorageUnavailableError is returned when both backends failed one call.
type StorageUnavailableError struct {
	Op       Op
	Primary  error
	Fallback error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("%s: %v (primary: %v; fallback: %v)", e.Op, ErrStorageUnavailable, e.Primary, e.Fallback)
}

func (e *StorageUnavailableError) Is(target error) bool { return target == ErrStorageUnavailable }
