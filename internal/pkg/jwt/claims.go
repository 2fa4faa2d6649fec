package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims issued by the upstream identity
// service. The billing service only consumes tokens; it never issues
// them.
type Claims struct {
	UserID         string `json:"user_id"`
	SessionPurpose string `json:"session_purpose"` // access, refresh, etc.
	IsTemp         bool   `json:"is_temp"`
	jwt.RegisteredClaims
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}
