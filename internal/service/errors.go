package service

import (
	"errors"
	"strings"

	"github.com/iliyamo/revue-tickets/internal/reservation"
)

var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoCheckoutSession means the order was stored without a payment session.
	ErrNoCheckoutSession = errors.New("order has no checkout session")
)

// RefundRequiredError is returned when the payment authority reports
// success but the order's seats could not be finalized.  The order
// stays unpaid and the buyer has to be refunded or reseated.
type RefundRequiredError struct {
	OrderID string
	Seats   []string
}

func (e *RefundRequiredError) Error() string {
	return "payment succeeded but seats are no longer available for order " + e.OrderID + ": " + strings.Join(e.Seats, ", ")
}

func (e *RefundRequiredError) Is(target error) bool { return target == reservation.ErrConflict }
