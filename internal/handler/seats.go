package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/middleware"
	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/reservation"
)

// SeatService is the part of the reservation core behind the seat
// selection surface.
type SeatService interface {
	ListSeatsForRequester(ctx context.Context, date, requester string) (model.SeatsByRow, error)
	VerifySeats(ctx context.Context, date string, refs []model.SeatRef, requester string, policy reservation.Policy) ([]string, error)
	Select(ctx context.Context, key model.SeatKey, requester string) error
	Unselect(ctx context.Context, key model.SeatKey, requester string) error
	RefreshView(ctx context.Context, date string) (model.SeatsByRow, error)
}

// SeatHandler serves the seat map and seat selection endpoints.  Every
// method expects the Session middleware to have assigned a requester id;
// holds are owned by that id.
type SeatHandler struct {
	Seats SeatService // reconciler
	Log   *zap.Logger
}

// NewSeatHandler constructs a SeatHandler and panics if seats is nil.
func NewSeatHandler(seats SeatService, log *zap.Logger) *SeatHandler {
	if seats == nil {
		panic("nil seat service passed to NewSeatHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SeatHandler{Seats: seats, Log: log}
}

// ListSeats handles GET /api/v1/seats/:date.  It returns the seats of the
// date grouped by row, with holds of other sessions shown as unavailable
// and the caller's own holds shown as selected.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	date := c.Param("date")
	if err := validateDate(date); err != nil {
		return writeError(c, h.Log, err)
	}
	seats, err := h.Seats.ListSeatsForRequester(c.Request().Context(), date, middleware.RequesterID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, seats)
}

// Select handles POST /api/v1/seats/select.  The body names one seat.  A
// seat held by another session or already sold yields 409; an unknown
// seat yields 404.  Selecting a seat the caller already holds refreshes
// the hold.
func (h *SeatHandler) Select(c echo.Context) error {
	var body seatRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	key := body.Key()
	if err := h.Seats.Select(c.Request().Context(), key, middleware.RequesterID(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "seat held", "date": key.Date, "seat": key.SeatRef.String()})
}

// Unselect handles POST /api/v1/seats/unselect.  Releasing a hold owned
// by another session yields 403; releasing an expired hold yields 404,
// which clients treat as already released.
func (h *SeatHandler) Unselect(c echo.Context) error {
	var body seatRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	key := body.Key()
	if err := h.Seats.Unselect(c.Request().Context(), key, middleware.RequesterID(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "seat released", "date": key.Date, "seat": key.SeatRef.String()})
}

// Verify handles POST /api/v1/seats/verify.  It runs before the checkout
// form and tolerates seats nobody holds; the strict ownership check
// happens when the order is created.
func (h *SeatHandler) Verify(c echo.Context) error {
	var body verifyRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	bad, err := h.Seats.VerifySeats(c.Request().Context(), body.Date, body.Seats, middleware.RequesterID(c), reservation.PolicyOwnedOrFree)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if len(bad) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats no longer available", "invalid_seats": bad})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// RefreshSeats handles POST /api/v1/internal/seats/:date/refresh.  It
// rebuilds the cached seat view of the date from the durable store.
func (h *SeatHandler) RefreshSeats(c echo.Context) error {
	date := c.Param("date")
	if err := validateDate(date); err != nil {
		return writeError(c, h.Log, err)
	}
	seats, err := h.Seats.RefreshView(c.Request().Context(), date)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	n := 0
	for _, row := range seats {
		n += len(row)
	}
	h.Log.Info("seat view refreshed", zap.String("date", date), zap.Int("seats", n))
	return c.JSON(http.StatusOK, echo.Map{"date": date, "rows": len(seats), "seats": n})
}
