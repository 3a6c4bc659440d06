package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenConfig describes how access tokens are signed and who they are for.
type TokenConfig struct {
	Issuer    string
	Audience  string
	Secret    []byte
	ExpiresIn time.Duration
}

// TokenClaim is a custom claim embedded in a token.
type TokenClaim struct {
	Name  string
	Value any
}

// UserIDClaim is the claim carrying the authenticated user id.
const UserIDClaim = "userId"

// TokenService issues HS256 JWTs.
type TokenService struct {
	now func() time.Time
}

func NewTokenService() *TokenService {
	return &TokenService{now: time.Now}
}

// NewTokenServiceWithClock is NewTokenService with an injected clock.
func NewTokenServiceWithClock(now func() time.Time) *TokenService {
	return &TokenService{now: now}
}

// Generate signs a token carrying the registered claims from cfg and the
// given custom claims. Registered claims take precedence over custom ones
// with the same name. It also returns the expiry written into the token.
func (s *TokenService) Generate(cfg TokenConfig, claims ...TokenClaim) (string, time.Time, error) {
	if len(cfg.Secret) == 0 {
		return "", time.Time{}, errors.New("token secret is empty")
	}

	now := s.now()
	expiresAt := now.Add(cfg.ExpiresIn)

	mapClaims := jwt.MapClaims{}
	for _, c := range claims {
		mapClaims[c.Name] = c.Value
	}
	mapClaims["iss"] = cfg.Issuer
	mapClaims["aud"] = cfg.Audience
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["exp"] = jwt.NewNumericDate(expiresAt)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	// Round to the second like the exp claim so callers report the same instant.
	return signed, expiresAt.Truncate(time.Second), nil
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
