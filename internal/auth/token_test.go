package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEmbedsClaims(t *testing.T) {
	svc := NewTokenServiceWithClock(func() time.Time { return testNow })
	cfg := testTokenConfig()

	token, expiresAt, err := svc.Generate(cfg, TokenClaim{Name: UserIDClaim, Value: "u1"}, TokenClaim{Name: "iss", Value: "spoofed"})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Hour), expiresAt)

	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "HS256", parsed.Method.Alg())
	assert.Equal(t, "u1", claims[UserIDClaim])
	assert.Equal(t, cfg.Issuer, claims["iss"])

	aud, err := claims.GetAudience()
	require.NoError(t, err)
	assert.Contains(t, aud, cfg.Audience)

	exp, ok := tokenExpiry(token)
	require.True(t, ok)
	assert.True(t, exp.Equal(expiresAt))
}

func TestGenerateIsDeterministicForSameClock(t *testing.T) {
	svc := NewTokenServiceWithClock(func() time.Time { return testNow })
	cfg := testTokenConfig()

	a, _, err := svc.Generate(cfg, TokenClaim{Name: UserIDClaim, Value: "u1"})
	require.NoError(t, err)
	b, _, err := svc.Generate(cfg, TokenClaim{Name: UserIDClaim, Value: "u1"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerateRequiresSecret(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Secret = nil

	_, _, err := NewTokenService().Generate(cfg)
	assert.Error(t, err)
}

func TestTokenExpiryRejectsGarbage(t *testing.T) {
	_, ok := tokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
