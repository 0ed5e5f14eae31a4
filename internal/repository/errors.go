// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the reservation reconciler to distinguish between
// different failure scenarios. For example, ErrAlreadyPaid tells the
// finalize path that another caller won the paid flag, while
// ErrConflict signals that a seat was already sold when the durable
// update tried to claim it.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as claiming a seat that is no longer
// available. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrOrderNotFound is returned when an order lookup yields no rows.
var ErrOrderNotFound = errors.New("order not found")

// ErrAlreadyPaid is returned by MarkPaid when the order's paid flag was
// already set, either earlier or by a concurrent caller.
var ErrAlreadyPaid = errors.New("order already paid")

// SeatsTakenError reports the seats that could not be flipped to
// unavailable because another order already owns them. It matches
// ErrConflict under errors.Is.
type SeatsTakenError struct {
	Seats []string
}

func (e *SeatsTakenError) Error() string {
	return "seats no longer available: " + strings.Join(e.Seats, ",")
}

func (e *SeatsTakenError) Is(target error) bool { return target == ErrConflict }
