package simplepublish

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is.
var (
	// ErrValidation indicates a missing or invalid field or file
	ErrValidation = errors.New("validation error")

	// ErrMalformedRequest indicates an unparseable or oversized request body
	ErrMalformedRequest = errors.New("malformed request")

	// ErrNotFound indicates an unknown id, slug or object key
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a slug collision detected by the repository
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable indicates an object store I/O or authorization failure
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrRepository indicates a relational store I/O failure
	ErrRepository = errors.New("repository error")
)

// ContentError represents an error related to content item operations
type ContentError struct {
	Category Category
	ID       int64
	Op       string
	Err      error
}

func (e *ContentError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("content operation %s failed for %s: %v", e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("content operation %s failed for %s %d: %v", e.Op, e.Category, e.ID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to object store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Validationf builds an ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorKind names the error class of err for logs and metrics. nil is "ok".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrRepository):
		return "repository"
	default:
		return "internal"
	}
}
