package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/revue-tickets/internal/handler"
	"github.com/iliyamo/revue-tickets/internal/middleware"
)

// RegisterInternal registers operator endpoints under /api/v1/internal.
// Every route requires the X-Internal-Secret header to match secretHash.
func RegisterInternal(e *echo.Echo, seats *handler.SeatHandler, orders *handler.OrderHandler, secretHash string) {
	g := e.Group(APIPrefix+"/internal", middleware.InternalOnly(secretHash))
	g.GET("/orders", orders.ListOrders)
	g.POST("/seats/:date/refresh", seats.RefreshSeats)
}
