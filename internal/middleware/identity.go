package middleware

// identity.go holds the helper that turns the claims stored by JWTAuth
// into an operator or customer id.  Handlers use it for the acting user,
// the rate limiter for its bucket key.

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ErrNoIdentity is returned by UserID when the request carries no usable
// subject claim.
var ErrNoIdentity = errors.New("invalid user_id in context")

// UserID extracts the user_id set by JWTAuth and converts it to uint64.
// JSON numbers in MapClaims decode as float64; string subjects are parsed.
func UserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		if t > 0 {
			return uint64(t), nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, ErrNoIdentity
}

// Role returns the role claim or "".
func Role(c echo.Context) string {
	r, _ := c.Get("role").(string)
	return r
}
