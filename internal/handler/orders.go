package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/middleware"
	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/payment"
	"github.com/iliyamo/revue-tickets/internal/service"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// OrderService is the order workflow behind the checkout endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput, requester string) (*service.CreateOrderResult, error)
	CheckStatus(ctx context.Context, orderID string) (*service.StatusResult, error)
	HandleWebhook(ctx context.Context, ev *payment.WebhookEvent) (*service.StatusResult, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context) ([]*model.Order, error)
}

// WebhookVerifier authenticates pushed payment notifications.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

// OrderHandler serves checkout, order status and payment webhooks.
type OrderHandler struct {
	Orders   OrderService
	Webhooks WebhookVerifier
	Log      *zap.Logger
}

// NewOrderHandler constructs an OrderHandler and panics if a dependency
// is nil.
func NewOrderHandler(orders OrderService, webhooks WebhookVerifier, log *zap.Logger) *OrderHandler {
	if orders == nil || webhooks == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{Orders: orders, Webhooks: webhooks, Log: log}
}

// CreateOrder handles POST /api/v1/orders.  The caller must hold every
// selected seat.  On success it returns 201 with the order id and the
// checkout URL to redirect the buyer to; seats that are not held by the
// caller are listed in a 409 response.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var body createOrderRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Orders.CreateOrder(c.Request().Context(), body.Input(), middleware.RequesterID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// GetOrder handles GET /api/v1/orders/:id.  Only the session that created
// the order can read it; other callers get 404.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	o, err := h.Orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if o.HolderID != middleware.RequesterID(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	return c.JSON(http.StatusOK, o)
}

// OrderStatus handles GET /api/v1/orders/order-status/:id.  It asks the
// payment authority for the checkout status and finalizes the order when
// the payment succeeded.  A paid order whose seats were lost returns 409
// with refund_required set.
func (h *OrderHandler) OrderStatus(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	res, err := h.Orders.CheckStatus(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// StripeWebhook handles POST /api/v1/webhooks/stripe.  The signature is
// verified over the raw body before anything is trusted; the event only
// triggers the same status check a poll would run.  Events that cannot be
// acted on are acknowledged so the provider stops retrying them.
func (h *OrderHandler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	ev, err := h.Webhooks.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.Log.Warn("webhook signature rejected", zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		}
		return writeError(c, h.Log, err)
	}

	res, err := h.Orders.HandleWebhook(c.Request().Context(), ev)
	var refund *service.RefundRequiredError
	switch {
	case errors.As(err, &refund):
		// retrying cannot bring the seats back
		h.Log.Error("webhook: refund required",
			zap.String("event_id", ev.ID),
			zap.String("order_id", refund.OrderID),
			zap.Strings("seats", refund.Seats))
		return c.JSON(http.StatusOK, echo.Map{"received": true, "refund_required": true})
	case err != nil:
		return writeError(c, h.Log, err)
	}
	out := echo.Map{"received": true}
	if res != nil {
		out["order_id"] = res.OrderID
		out["paid"] = res.Paid
	}
	return c.JSON(http.StatusOK, out)
}

// ListOrders handles GET /api/v1/internal/orders.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	orders, err := h.Orders.ListOrders(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if orders == nil {
		orders = []*model.Order{}
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders, "count": len(orders)})
}
