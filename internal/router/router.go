package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/revue-tickets/internal/handler"
	"github.com/iliyamo/revue-tickets/internal/middleware"
)

// APIPrefix is the path prefix of every versioned endpoint.
const APIPrefix = "/api/v1"

// SessionOptions configures the anonymous requester session applied to
// the buyer-facing groups.
type SessionOptions struct {
	Secret string
	TTL    time.Duration
	Secure bool // set the Secure flag on the cookie (production)
}

// RegisterRoutes registers endpoints that need neither a session nor a
// secret.  /health is the liveness probe, /healthz checks MySQL and Redis.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/health", handler.Health)
	e.GET("/healthz", h.Ready)
}

// buyerGroup returns the /api/v1 group with the session middleware
// applied, so every handler in it sees a requester id.
func buyerGroup(e *echo.Echo, opts SessionOptions) *echo.Group {
	return e.Group(APIPrefix, middleware.Session(opts.Secret, opts.TTL, opts.Secure))
}
