// Package payment talks to the external payment authority.  The core
// only needs to start a checkout and later learn whether it succeeded,
// either by polling or from a signed webhook.
package payment

import (
	"context"
	"errors"
	"time"
)

// Status is the payment state reported for a checkout session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusCanceled   Status = "canceled"
	StatusFailed     Status = "failed"
)

var (
	// ErrSessionNotFound is returned when the authority does not know the session.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CheckoutRequest describes the checkout to start for an order.
type CheckoutRequest struct {
	OrderID     string
	Email       string
	Description string
	AmountCents int64
	ExpiresAt   time.Time
}

// Checkout is the authority's handle on a started checkout.
type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"checkout_url"`
}

// WebhookEvent is the part of a pushed notification the core acts on.
// SessionID is empty for event types that do not concern a checkout.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Authority is an external payment provider.
type Authority interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	PaymentStatus(ctx context.Context, sessionID string) (Status, error)
	ExpireCheckout(ctx context.Context, sessionID string) error
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
