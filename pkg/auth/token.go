package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultExpiryBuffer is how long before actual expiry a token is already
// treated as expired, leaving headroom for in-flight requests.
const DefaultExpiryBuffer = 60 * time.Second

// Claims decodes the claims of a JWT without verifying its signature. The
// tokens handled here are only inspected client-side; verification is the
// resource server's job.
func Claims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// IsExpired reports whether token is expired or will expire within buffer.
// A token that cannot be decoded, or that carries no exp claim, counts as
// expired; an unparsable token must never be treated as valid.
func IsExpired(token string, buffer time.Duration) bool {
	claims, err := Claims(token)
	if err != nil {
		return true
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return true
	}
	return !time.Unix(int64(exp), 0).After(time.Now().Add(buffer))
}

// IdentityData is the identity derived from the access token's claims.
type IdentityData struct {
	ClientID string `json:"client_id" yaml:"client_id"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
}

// ExtractIdentity decodes the access token and pulls out the issuing
// application (azp) and email claims. ClientID falls back to "unknown" when
// the azp claim is absent.
func ExtractIdentity(token string) (IdentityData, error) {
	if token == "" {
		return IdentityData{}, errors.New("access token is empty; please log in again")
	}
	claims, err := Claims(token)
	if err != nil {
		return IdentityData{}, fmt.Errorf("invalid access token: %w", err)
	}
	identity := IdentityData{ClientID: "unknown"}
	if azp, ok := claims["azp"].(string); ok && azp != "" {
		identity.ClientID = azp
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	return identity, nil
}
