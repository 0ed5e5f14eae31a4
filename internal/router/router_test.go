package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/revue-tickets/internal/handler"
	"github.com/iliyamo/revue-tickets/internal/middleware"
	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/payment"
	"github.com/iliyamo/revue-tickets/internal/reservation"
	"github.com/iliyamo/revue-tickets/internal/service"
)

// stubSeats records the requester each call was made for.
type stubSeats struct{ lastRequester string }

func (s *stubSeats) ListSeatsForRequester(_ context.Context, _ string, requester string) (model.SeatsByRow, error) {
	s.lastRequester = requester
	return model.SeatsByRow{}, nil
}

func (s *stubSeats) VerifySeats(context.Context, string, []model.SeatRef, string, reservation.Policy) ([]string, error) {
	return nil, nil
}

func (s *stubSeats) Select(_ context.Context, _ model.SeatKey, requester string) error {
	s.lastRequester = requester
	return nil
}

func (s *stubSeats) Unselect(context.Context, model.SeatKey, string) error { return nil }

func (s *stubSeats) RefreshView(context.Context, string) (model.SeatsByRow, error) {
	return model.SeatsByRow{}, nil
}

type stubOrders struct{}

func (stubOrders) CreateOrder(context.Context, service.CreateOrderInput, string) (*service.CreateOrderResult, error) {
	return &service.CreateOrderResult{}, nil
}

func (stubOrders) CheckStatus(_ context.Context, id string) (*service.StatusResult, error) {
	return &service.StatusResult{OrderID: id, PaymentStatus: payment.StatusPending}, nil
}

func (stubOrders) HandleWebhook(context.Context, *payment.WebhookEvent) (*service.StatusResult, error) {
	return nil, nil
}

func (stubOrders) GetOrder(_ context.Context, id string) (*model.Order, error) {
	return &model.Order{ID: id}, nil
}

func (stubOrders) ListOrders(context.Context) ([]*model.Order, error) { return nil, nil }

func newTestServer(t *testing.T) (*echo.Echo, *stubSeats) {
	t.Helper()
	seats := &stubSeats{}
	sh := handler.NewSeatHandler(seats, nil)
	oh := handler.NewOrderHandler(stubOrders{}, payment.NewMock("whsec", "http://localhost"), nil)
	opts := SessionOptions{Secret: "s3cret", TTL: time.Hour}
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	e := echo.New()
	RegisterRoutes(e, handler.NewHealthHandler(nil, nil))
	RegisterSeats(e, sh, opts, pass)
	RegisterOrders(e, oh, opts, pass)
	RegisterInternal(e, sh, oh, "")
	return e, seats
}

func TestRoutes_SessionAssignedToSeatCalls(t *testing.T) {
	e, seats := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/seats/2025-08-14", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, seats.lastRequester)
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
}

func TestRoutes_OrderStatusNotShadowedByID(t *testing.T) {
	e, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-status/o-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_status":"pending"`)
}

func TestRoutes_InternalRequiresSecret(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/orders", nil)
	req.Header.Set(middleware.InternalSecretHeader, "anything")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoutes_WebhookRejectsUnsigned(t *testing.T) {
	e, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.SessionHeader))
}

func TestRoutes_HealthzWithoutStores(t *testing.T) {
	e, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
