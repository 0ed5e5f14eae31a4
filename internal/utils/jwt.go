package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// ErrInvalidSession is returned when a session token cannot be trusted.
var ErrInvalidSession = errors.New("invalid session token")

// SessionToken is a signed HS256 JWT naming an anonymous browsing
// session.  The session id (sid) is what the reservation core uses as
// the hold owner; it carries no user identity.
type SessionToken struct {
	Token string    // the serialized JWT string
	SID   string    // the session id carried in the sid claim
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken issues a token for a fresh random session id.
func NewSessionToken(secret string, ttl time.Duration) (SessionToken, error) {
	return SignSession(secret, uuid.NewString(), ttl)
}

// SignSession signs a token for an existing session id.  It is used to
// refresh the expiry of a session that is still in use.
func SignSession(secret, sid string, ttl time.Duration) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sid": sid,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, SID: sid, Exp: exp}, nil
}

// ParseSessionToken validates raw and returns its session id.  Only HMAC
// signing methods are accepted.
func ParseSessionToken(secret, raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", ErrInvalidSession
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", ErrInvalidSession
	}
	return sid, nil
}
