package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds the Stripe credentials and redirect URLs.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Stripe implements Authority with Stripe Checkout.
type Stripe struct {
	cfg StripeConfig
}

// NewStripe sets the global Stripe key and returns the authority.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "nzd"
	}
	stripe.Key = cfg.SecretKey
	return &Stripe{cfg: cfg}, nil
}

// CreateCheckout opens a hosted checkout session for the order total.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{"order_id": req.OrderID},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	params.Context = ctx

	cs, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Checkout{SessionID: cs.ID, URL: cs.URL}, nil
}

// PaymentStatus resolves the session's payment intent and returns its
// status.  A session that has no payment intent yet is pending.
func (s *Stripe) PaymentStatus(ctx context.Context, sessionID string) (Status, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := session.Get(sessionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == 404 {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("get checkout session: %w", err)
	}
	if cs.PaymentIntent == nil || cs.PaymentIntent.ID == "" {
		if cs.Status == stripe.CheckoutSessionStatusExpired {
			return StatusCanceled, nil
		}
		return StatusPending, nil
	}
	piParams := &stripe.PaymentIntentParams{}
	piParams.Context = ctx
	pi, err := paymentintent.Get(cs.PaymentIntent.ID, piParams)
	if err != nil {
		return "", fmt.Errorf("get payment intent: %w", err)
	}
	return mapIntentStatus(pi.Status), nil
}

// ExpireCheckout closes a session that will never be paid, e.g. when the
// order could not be stored.
func (s *Stripe) ExpireCheckout(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := session.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire checkout session: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// checkout session the event is about.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return parseEvent(payload, signature, s.cfg.WebhookSecret)
}

func parseEvent(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = cs.ID
	}
	return out, nil
}

func mapIntentStatus(st stripe.PaymentIntentStatus) Status {
	switch st {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return StatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	default:
		return StatusPending
	}
}
