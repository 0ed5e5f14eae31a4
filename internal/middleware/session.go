package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/revue-tickets/internal/utils"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "revue_session"

// SessionHeader returns the current token for clients that cannot keep cookies.
const SessionHeader = "X-Session-Token"

// Session returns an Echo middleware that gives every request a stable
// anonymous requester identity.  The token is read from the session
// cookie or from an "Authorization: Bearer" header.  A missing or
// invalid token is replaced by a new session, so the request is never
// rejected; a seat held under a lost session simply expires.
func Session(secret string, ttl time.Duration, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if ck, err := c.Cookie(SessionCookie); err == nil {
				raw = ck.Value
			}
			if raw == "" {
				if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					raw = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			var tok utils.SessionToken
			sid, err := utils.ParseSessionToken(secret, raw)
			if err == nil {
				// sliding expiry keeps an active buyer on one identity
				tok, err = utils.SignSession(secret, sid, ttl)
			} else {
				tok, err = utils.NewSessionToken(secret, ttl)
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue session"})
			}

			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    tok.Token,
				Path:     "/",
				Expires:  tok.Exp,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			c.Response().Header().Set(SessionHeader, tok.Token)
			c.Set(requesterKey, tok.SID)
			return next(c)
		}
	}
}
