package middleware

// identity.go defines helpers shared across middleware files and handlers.
// The requester id is the anonymous session id placed in the Echo context
// by Session; handlers pass it to the reservation core as the hold owner.

import "github.com/labstack/echo/v4"

const requesterKey = "requester_id"

// RequesterID returns the session id of the current request, or "" when
// the Session middleware did not run.
func RequesterID(c echo.Context) string {
	if v, ok := c.Get(requesterKey).(string); ok {
		return v
	}
	return ""
}

// currentRequester is RequesterID with a placeholder for rate limit keys.
func currentRequester(c echo.Context) string {
	if id := RequesterID(c); id != "" {
		return id
	}
	return "anon"
}
