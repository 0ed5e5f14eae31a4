package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/revue-tickets/internal/handler"
)

// RegisterSeats registers the seat map and seat selection endpoints under
// /api/v1/seats.  limit guards the hold-mutating routes; pass a
// pass-through middleware to disable it.
func RegisterSeats(e *echo.Echo, h *handler.SeatHandler, opts SessionOptions, limit echo.MiddlewareFunc) {
	g := buyerGroup(e, opts).Group("/seats")
	g.GET("/:date", h.ListSeats)
	// select and unselect take Redis locks, so they sit behind the limiter
	g.POST("/select", h.Select, limit)
	g.POST("/unselect", h.Unselect, limit)
	g.POST("/verify", h.Verify)
}
