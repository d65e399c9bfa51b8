package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is what a TokenValidator yields once a bearer credential
// passed its offline checks
type AuthClaims interface {
	Subject() string
	UserID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The role is
// deliberately absent: authorization always reads the live record.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID   string `json:"userId,omitempty"`
	Email string `json:"email,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Expires is zero when the token carries no exp claim
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// newSessionClaims builds the claim set of a freshly issued session token.
// The subject is repeated in userId for clients that read the legacy claim.
func newSessionClaims(userID, issuer string, audience jwt.ClaimStrings, issuedAt time.Time, ttl time.Duration) *JWTClaims {
	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newTokenID(),
			Issuer:    issuer,
			Subject:   userID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UID: userID,
	}
}
