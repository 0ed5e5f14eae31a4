package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestMock_CheckoutLifecycle(t *testing.T) {
	m := NewMock("whsec", "http://localhost:8080")
	ctx := context.Background()

	co, err := m.CreateCheckout(ctx, CheckoutRequest{OrderID: "o1", AmountCents: 4500})
	require.NoError(t, err)
	assert.Contains(t, co.URL, co.SessionID)

	st, err := m.PaymentStatus(ctx, co.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)

	require.NoError(t, m.SetStatus(co.SessionID, StatusSucceeded))
	st, err = m.PaymentStatus(ctx, co.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st)

	require.NoError(t, m.ExpireCheckout(ctx, co.SessionID))
	st, _ = m.PaymentStatus(ctx, co.SessionID)
	assert.Equal(t, StatusCanceled, st)

	_, err = m.PaymentStatus(ctx, "cs_unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMock_ParseWebhook(t *testing.T) {
	m := NewMock("whsec_mock", "")

	tests := []struct {
		name      string
		eventType stripe.EventType
		wantID    string
	}{
		{"completed", stripe.EventTypeCheckoutSessionCompleted, "cs_1"},
		{"async succeeded", stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, "cs_1"},
		{"other event", stripe.EventTypeCheckoutSessionExpired, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, header, err := m.SignedEvent(tt.eventType, "cs_1")
			require.NoError(t, err)

			ev, err := m.ParseWebhook(body, header)
			require.NoError(t, err)
			assert.Equal(t, string(tt.eventType), ev.Type)
			assert.Equal(t, tt.wantID, ev.SessionID)
			assert.NotEmpty(t, ev.ID)
		})
	}

	body, _, err := m.SignedEvent(stripe.EventTypeCheckoutSessionCompleted, "cs_1")
	require.NoError(t, err)
	_, err = m.ParseWebhook(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// a Stripe authority with another secret rejects the mock's events
	other := &Stripe{cfg: StripeConfig{WebhookSecret: "whsec_other"}}
	body, header, err := m.SignedEvent(stripe.EventTypeCheckoutSessionCompleted, "cs_1")
	require.NoError(t, err)
	_, err = other.ParseWebhook(body, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestMapIntentStatus(t *testing.T) {
	tests := map[string]Status{
		"succeeded":               StatusSucceeded,
		"processing":              StatusProcessing,
		"canceled":                StatusCanceled,
		"requires_payment_method": StatusPending,
		"requires_action":         StatusPending,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, mapIntentStatus(stripePaymentIntentStatus(in)))
		})
	}
}
