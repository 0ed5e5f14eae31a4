// Package service holds the order workflow that sits between the HTTP
// handlers and the reservation core: checkout creation, payment status
// polling and the post-payment confirmation event.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/clock"
	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/payment"
	"github.com/iliyamo/revue-tickets/internal/queue"
	"github.com/iliyamo/revue-tickets/internal/repository"
	"github.com/iliyamo/revue-tickets/internal/reservation"
)

// OrderStore is the durable order store used by the service.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*model.Order, error)
	List(ctx context.Context) ([]*model.Order, error)
}

// Reservations is the part of the reconciler the order flow drives.
type Reservations interface {
	VerifySeats(ctx context.Context, date string, refs []model.SeatRef, requester string, policy reservation.Policy) ([]string, error)
	ExtendHolds(ctx context.Context, date string, refs []model.SeatRef, ttl time.Duration) error
	FinalizeOrder(ctx context.Context, o *model.Order) (bool, error)
}

// EventPublisher publishes order confirmations.
type EventPublisher interface {
	PublishOrderPaid(ctx context.Context, ev queue.OrderPaidEvent) error
}

// OrderConfig holds the checkout timings.
type OrderConfig struct {
	CheckoutHoldTTL time.Duration // hold lifetime once an order exists
	CheckoutExpiry  time.Duration // payment session lifetime
}

// OrderService creates orders and finalizes them once paid.
type OrderService struct {
	orders    OrderStore
	seats     Reservations
	authority payment.Authority
	events    EventPublisher
	scheduler *StatusScheduler
	cfg       OrderConfig
	clock     clock.Clock
	log       *zap.Logger
}

// NewOrderService wires the order workflow.  events and scheduler may be
// nil, in which case confirmations are not published and status checks
// are only run on demand.
func NewOrderService(orders OrderStore, seats Reservations, authority payment.Authority, events EventPublisher,
	scheduler *StatusScheduler, cfg OrderConfig, clk clock.Clock, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &OrderService{
		orders:    orders,
		seats:     seats,
		authority: authority,
		events:    events,
		scheduler: scheduler,
		cfg:       cfg,
		clock:     clk,
		log:       log,
	}
}

// CreateOrderInput is a validated order request.
type CreateOrderInput struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	IsStudent       bool
	StudentCount    int
	SelectedDate    string
	SelectedSeats   []model.OrderSeat
	TotalPriceCents int64
}

// CreateOrderResult tells the client where to pay.
type CreateOrderResult struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateOrder re-verifies that requester holds every seat, stretches the
// holds over the checkout window, opens a payment session and stores the
// unpaid order.  A *reservation.ConflictError lists seats that failed.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput, requester string) (*CreateOrderResult, error) {
	o := &model.Order{
		ID:              uuid.NewString(),
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           in.Email,
		Phone:           in.Phone,
		IsStudent:       in.IsStudent,
		StudentCount:    in.StudentCount,
		SelectedDate:    in.SelectedDate,
		SelectedSeats:   in.SelectedSeats,
		TotalPriceCents: in.TotalPriceCents,
		HolderID:        requester,
	}
	refs := o.SeatRefs()
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", ErrInvalidInput)
	}

	invalid, err := s.seats.VerifySeats(ctx, o.SelectedDate, refs, requester, reservation.PolicyOwned)
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		return nil, &reservation.ConflictError{Seats: invalid}
	}
	if err := s.seats.ExtendHolds(ctx, o.SelectedDate, refs, s.cfg.CheckoutHoldTTL); err != nil {
		return nil, err
	}

	co, err := s.authority.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:     o.ID,
		Email:       o.Email,
		Description: checkoutDescription(o),
		AmountCents: o.TotalPriceCents,
		ExpiresAt:   s.clock.Now().Add(s.cfg.CheckoutExpiry),
	})
	if err != nil {
		return nil, err
	}
	o.CheckoutSessionID = co.SessionID

	if err := s.orders.Create(ctx, o); err != nil {
		if xerr := s.authority.ExpireCheckout(ctx, co.SessionID); xerr != nil {
			s.log.Warn("expire orphaned checkout failed", zap.String("session_id", co.SessionID), zap.Error(xerr))
		}
		return nil, fmt.Errorf("store order: %w", err)
	}

	if s.scheduler != nil {
		id := o.ID
		s.scheduler.Schedule(id, func(ctx context.Context) (bool, error) {
			res, err := s.CheckStatus(ctx, id)
			if err != nil {
				return false, err
			}
			return res.Paid || res.PaymentStatus == payment.StatusCanceled, nil
		})
	}
	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("date", o.SelectedDate),
		zap.Int("seats", len(refs)))
	return &CreateOrderResult{OrderID: o.ID, SessionID: co.SessionID, CheckoutURL: co.URL}, nil
}

// StatusResult is the outcome of a payment status check.
type StatusResult struct {
	OrderID       string         `json:"order_id"`
	PaymentStatus payment.Status `json:"payment_status"`
	Paid          bool           `json:"paid"`
}

// CheckStatus asks the payment authority about the order and finalizes it
// when the payment succeeded.  It is safe to call any number of times,
// concurrently, from pollers, webhooks and clients.  When the seats can no
// longer be finalized a *RefundRequiredError is returned.
func (s *OrderService) CheckStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CheckoutSessionID == "" {
		return nil, ErrNoCheckoutSession
	}
	st, err := s.authority.PaymentStatus(ctx, o.CheckoutSessionID)
	if err != nil {
		return nil, err
	}
	res := &StatusResult{OrderID: o.ID, PaymentStatus: st, Paid: o.Paid}
	if st != payment.StatusSucceeded || o.Paid {
		return res, nil
	}

	done, err := s.seats.FinalizeOrder(ctx, o)
	if err != nil {
		var conflict *reservation.ConflictError
		if errors.As(err, &conflict) {
			s.log.Error("paid order lost its seats",
				zap.String("order_id", o.ID),
				zap.Strings("seats", conflict.Seats))
			return res, &RefundRequiredError{OrderID: o.ID, Seats: conflict.Seats}
		}
		return nil, err
	}
	res.Paid = o.Paid
	if done {
		s.publishPaid(ctx, o)
	}
	return res, nil
}

// HandleWebhook runs a status check for the order behind a pushed
// payment event.  Events for unknown sessions are ignored.
func (s *OrderService) HandleWebhook(ctx context.Context, ev *payment.WebhookEvent) (*StatusResult, error) {
	if ev.SessionID == "" {
		return nil, nil
	}
	o, err := s.orders.GetByCheckoutSession(ctx, ev.SessionID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		s.log.Warn("webhook for unknown session", zap.String("event_id", ev.ID), zap.String("session_id", ev.SessionID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.CheckStatus(ctx, o.ID)
}

// GetOrder returns a single order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]*model.Order, error) {
	return s.orders.List(ctx)
}

func (s *OrderService) publishPaid(ctx context.Context, o *model.Order) {
	if s.events == nil {
		return
	}
	seats := make([]string, 0, len(o.SelectedSeats))
	for _, ref := range o.SeatRefs() {
		seats = append(seats, ref.String())
	}
	ev := queue.OrderPaidEvent{
		OrderID:         o.ID,
		FirstName:       o.FirstName,
		LastName:        o.LastName,
		Email:           o.Email,
		ShowDate:        o.SelectedDate,
		Seats:           seats,
		TotalPriceCents: o.TotalPriceCents,
		PaidAt:          s.clock.Now().Format(time.RFC3339),
	}
	// Best effort: the sale is already durable.
	if err := s.events.PublishOrderPaid(ctx, ev); err != nil {
		s.log.Warn("publish order.paid failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func checkoutDescription(o *model.Order) string {
	labels := make([]string, 0, len(o.SelectedSeats))
	for _, s := range o.SelectedSeats {
		labels = append(labels, fmt.Sprintf("%s%d", s.RowLabel, s.Number))
	}
	return fmt.Sprintf("Revue tickets %s (%s)", o.SelectedDate, strings.Join(labels, ", "))
}
