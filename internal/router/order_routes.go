package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/revue-tickets/internal/handler"
)

// RegisterOrders registers checkout and order status endpoints under
// /api/v1/orders and the payment webhook.  The webhook is authenticated
// by its signature and carries no session.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, opts SessionOptions, limit echo.MiddlewareFunc) {
	g := buyerGroup(e, opts).Group("/orders")
	g.POST("", h.CreateOrder, limit)
	// static segment wins over :id in Echo's router
	g.GET("/order-status/:id", h.OrderStatus)
	g.GET("/:id", h.GetOrder)

	e.POST(APIPrefix+"/webhooks/stripe", h.StripeWebhook)
}
