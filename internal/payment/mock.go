package payment

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Mock is an in-process authority for local development and tests.
// Sessions start pending; SetStatus moves them along.  Webhooks use the
// Stripe event envelope and Stripe-Signature header, so the same parser
// serves both authorities.
type Mock struct {
	mu       sync.Mutex
	secret   string
	baseURL  string
	sessions map[string]*mockSession
}

type mockSession struct {
	req    CheckoutRequest
	status Status
}

// NewMock returns an empty mock authority.
func NewMock(webhookSecret, baseURL string) *Mock {
	return &Mock{secret: webhookSecret, baseURL: baseURL, sessions: map[string]*mockSession{}}
}

func (m *Mock) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "cs_mock_" + uuid.NewString()
	m.sessions[id] = &mockSession{req: req, status: StatusPending}
	return &Checkout{SessionID: id, URL: m.baseURL + "/checkout/" + id}, nil
}

func (m *Mock) PaymentStatus(_ context.Context, sessionID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return s.status, nil
}

func (m *Mock) ExpireCheckout(_ context.Context, sessionID string) error {
	return m.SetStatus(sessionID, StatusCanceled)
}

// SetStatus changes the reported status of a session.
func (m *Mock) SetStatus(sessionID string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.status = st
	return nil
}

// SignedEvent builds a Stripe-shaped event about a checkout session and
// signs it with the mock's webhook secret.  It returns the body and the
// Stripe-Signature header value.
func (m *Mock) SignedEvent(eventType stripe.EventType, sessionID string) ([]byte, string, error) {
	body, err := json.Marshal(map[string]any{
		"id":          "evt_mock_" + uuid.NewString(),
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data": map[string]any{
			"object": map[string]string{"id": sessionID, "object": "checkout.session"},
		},
	})
	if err != nil {
		return nil, "", err
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    m.secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header, nil
}

func (m *Mock) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return parseEvent(payload, signature, m.secret)
}
