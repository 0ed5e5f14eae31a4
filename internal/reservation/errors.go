// Package reservation implements seat concurrency control: short-lived
// holds in Redis, a cached seat view per performance date, and the
// reconciler that merges both with the durable seat and order stores.
package reservation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/revue-tickets/internal/repository"
)

var (
	// ErrConflict means the seat is held by another requester or was
	// already sold.  It aliases the repository sentinel so a conflict
	// raised by the durable store matches the same errors.Is check.
	ErrConflict = repository.ErrConflict
	// ErrForbidden means the caller tried to release a hold it does not own.
	ErrForbidden = repository.ErrForbidden
	// ErrHoldNotFound means no live hold exists for the seat.
	ErrHoldNotFound = errors.New("hold not found")
	// ErrSeatNotFound means the seat does not exist for the date.
	ErrSeatNotFound = errors.New("seat not found")
	// ErrStoreUnavailable wraps failures talking to Redis.
	ErrStoreUnavailable = errors.New("reservation store unavailable")
	// ErrCacheMiss is returned by ViewCache.Get when no snapshot is cached.
	ErrCacheMiss = errors.New("seat view cache miss")
)

// ConflictError enumerates the seats that made an operation fail.  It
// matches ErrConflict under errors.Is.
type ConflictError struct {
	Seats []string
}

func (e *ConflictError) Error() string {
	return "seats no longer available: " + strings.Join(e.Seats, ", ")
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
