package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is the liveness endpoint used by load balancers.  It returns a
// plain text "ok" with status 200 as long as the process serves HTTP.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger is satisfied by every go-redis client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthHandler reports readiness of the stores the reservation core
// depends on.
type HealthHandler struct {
	DB    DBPinger
	Redis RedisPinger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db DBPinger, rdb RedisPinger) *HealthHandler {
	return &HealthHandler{DB: db, Redis: rdb}
}

// Ready handles GET /healthz.  It pings MySQL and Redis with a short
// timeout and returns 503 when either is unreachable.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := echo.Map{"db": "ok", "redis": "ok"}
	if h.DB == nil {
		out["db"] = "not configured"
		status = http.StatusServiceUnavailable
	} else if err := h.DB.PingContext(ctx); err != nil {
		out["db"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.Redis == nil {
		out["redis"] = "not configured"
		status = http.StatusServiceUnavailable
	} else if err := h.Redis.Ping(ctx).Err(); err != nil {
		out["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	out["status"] = http.StatusText(status)
	return c.JSON(status, out)
}
