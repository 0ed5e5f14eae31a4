package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/revue-tickets/internal/utils"
)

// InternalSecretHeader carries the shared secret of operator endpoints.
const InternalSecretHeader = "X-Internal-Secret"

// InternalOnly guards operator routes.  The header value is checked
// against a bcrypt hash of the secret, never compared as plain text.  With
// an empty hash every request is refused.
func InternalOnly(secretHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(InternalSecretHeader)
			if secretHash == "" || got == "" || !utils.VerifySecret(secretHash, got) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
