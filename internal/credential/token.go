// Package credential turns issued-ticket ids into the opaque tokens that
// are printed as QR codes and back.  The id itself is the redemption
// secret; the token is an encoding of it, not a signature over it.
package credential

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// tokenPrefix versions the encoding so door scanners can tell a ticket
// token from arbitrary QR content.
const tokenPrefix = "TKT1"

// ErrMalformed is returned by Parse for input that is neither a UUID nor
// a ticket token.
var ErrMalformed = errors.New("malformed ticket credential")

// NewID returns a fresh random credential id.
func NewID() string { return uuid.NewString() }

// Encode renders a credential id as a compact URL-safe token: the prefix
// followed by the base64url form of the 16 UUID bytes.
func Encode(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrMalformed
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(u[:]), nil
}

// Parse accepts either a token produced by Encode or a raw UUID and
// returns the canonical lower-case id.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, tokenPrefix) {
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, tokenPrefix))
		if err != nil || len(raw) != 16 {
			return "", ErrMalformed
		}
		u, err := uuid.FromBytes(raw)
		if err != nil {
			return "", ErrMalformed
		}
		return u.String(), nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrMalformed
	}
	return u.String(), nil
}
