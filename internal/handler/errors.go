package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/payment"
	"github.com/iliyamo/revue-tickets/internal/repository"
	"github.com/iliyamo/revue-tickets/internal/reservation"
	"github.com/iliyamo/revue-tickets/internal/service"
)

// writeError translates an error from the reservation core or the order
// service into an HTTP response.  Anything not recognised is logged and
// reported as a 500 without leaking the cause.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var refund *service.RefundRequiredError
	var conflict *reservation.ConflictError
	switch {
	case errors.As(err, &refund):
		// the buyer paid for seats that are gone; the client must escalate
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "payment received but seats are no longer available",
			"refund_required": true,
			"order_id":        refund.OrderID,
			"invalid_seats":   refund.Seats,
		})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats no longer available", "invalid_seats": conflict.Seats})
	case errors.Is(err, reservation.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat no longer available"})
	case errors.Is(err, reservation.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "seat is held by another session"})
	case errors.Is(err, reservation.ErrHoldNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
	case errors.Is(err, reservation.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	case errors.Is(err, repository.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNoCheckoutSession):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order has no checkout session"})
	case errors.Is(err, reservation.ErrStoreUnavailable):
		log.Warn("reservation store unavailable", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "seat service temporarily unavailable"})
	case errors.Is(err, payment.ErrSessionNotFound):
		log.Error("payment session missing", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment session not found"})
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
