package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rollcall/internal/profile"
)

// Roles carried in tokens.
const (
	RoleOwner  = "owner"
	RoleViewer = "viewer"
)

// Token is a signed access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims represents JWT payload. Subject is the owning group id.
type Claims struct {
	Subject string          `json:"sub"`
	Role    string          `json:"role"`
	Profile profile.Profile `json:"profile"`
	// Name is the legacy "Preparer|Unit|Group" display name, read when Profile is empty.
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ResolvedProfile returns the structured profile, falling back to the legacy
// display name encoding.
func (c Claims) ResolvedProfile() profile.Profile {
	if c.Profile.PreparerName != "" || c.Profile.UnitLabel != "" {
		return c.Profile.Normalize()
	}
	if c.Name != "" {
		return profile.ParseLegacy(c.Name, c.Subject)
	}
	return profile.Profile{PreparerName: c.Subject}
}

// Issue signs an access token for an owner.
func Issue(subject, role string, p profile.Profile, issuer, key string, ttl time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("subject required")
	}
	now := time.Now()
	exp := now.Add(ttl)

	claims := Claims{
		Subject: subject,
		Role:    role,
		Profile: p.Normalize(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return *claims, nil
}
