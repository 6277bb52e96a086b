package store

import (
	"context"
	"errors"
	"net"
)

// Error taxonomy shared by every backend. Backends wrap their native errors
// with one of these so callers can branch with errors.Is.
var (
	// ErrUnauthenticated means no user identity was supplied. Never retried.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound means the referenced content item, trip record or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means an optimistic transaction lost a race with another writer.
	ErrConflict = errors.New("conflict")
	// ErrPermissionDenied means the backend explicitly refused access. For a remote
	// store this is the unavailable-permanent-for-session classification that
	// triggers failover.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransient covers timeouts and network failures. Surfaced as-is; callers may retry.
	ErrTransient = errors.New("transient failure")
	// ErrForbidden means the user is authenticated but not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalid means the input or a stored document failed validation.
	ErrInvalid = errors.New("invalid")
	// ErrVoteUnsupported is returned when a vote targets a resource served by the local store,
	// which keeps no per-user vote history.
	ErrVoteUnsupported = errors.New("voting unavailable on local store")
)

// IsPermanentForSession reports whether err should flip a resource to the local store.
func IsPermanentForSession(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNetworkError reports whether err looks like a timeout or a broken connection.
// Backends use it before falling back to ErrTransient.
func IsNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
