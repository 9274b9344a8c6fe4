package storeapi

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the taxonomy in spec §7. Callers use errors.Is
// against these, or errors.As against UnexpectedResponse for the status
// code.
var (
	// ErrContainerNotFound is returned for any 404: a missing container or
	// a missing object. When the remote bucket disappears mid-pass, the
	// controller logs and moves on to the next migration.
	ErrContainerNotFound = errors.New("storeapi: container not found")

	// ErrConflict wraps a 409 from the local store — "leave alone", not a
	// failure worth recording on the error queue.
	ErrConflict = errors.New("storeapi: conflict")
)

// MigrationError represents an invariant-breaking failure: same-time-
// different-etag, mismatched MPU final etag, container-creation timeout,
// invalid storage policy. It is logged, the affected object is reported on
// the error queue, and the pass continues (spec §7).
type MigrationError struct {
	Container string
	Key       string
	Reason    string
}

func (e *MigrationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("migration error on container %s: %s", e.Container, e.Reason)
	}
	return fmt.Sprintf("migration error on %s/%s: %s", e.Container, e.Key, e.Reason)
}

// NewMigrationError builds a MigrationError for a specific object.
func NewMigrationError(container, key, reason string) *MigrationError {
	return &MigrationError{Container: container, Key: key, Reason: reason}
}

// UnexpectedResponse wraps a non-2xx local HTTP response that the caller
// didn't special-case into ErrContainerNotFound/ErrConflict.
type UnexpectedResponse struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *UnexpectedResponse) Error() string {
	return fmt.Sprintf("unexpected response %d for %s %s", e.StatusCode, e.Method, e.Path)
}

// ClassifyStatus maps a local-store HTTP status code onto the taxonomy in
// spec §7: 404 -> ErrContainerNotFound (container or object missing), 409 ->
// ErrConflict, anything else 2xx is success, otherwise UnexpectedResponse.
func ClassifyStatus(method, path string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 404:
		return ErrContainerNotFound
	case status == 409:
		return ErrConflict
	default:
		return &UnexpectedResponse{Method: method, Path: path, StatusCode: status}
	}
}
