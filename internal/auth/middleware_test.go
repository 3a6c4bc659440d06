package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/httputil"
)

func TestCheckJWTAcceptsValidRequest(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, TokenClaim{Name: UserIDClaim, Value: "u1"})

	principal, reasons, err := env.gate.CheckJWT(context.Background(), "Bearer "+token, testAPIKey)
	require.NoError(t, err)
	assert.Empty(t, reasons)
	require.NotNil(t, principal)
	assert.Equal(t, "u1", principal.UserID)
}

func TestCheckJWTAccumulatesReasons(t *testing.T) {
	env := newTestEnv(t)

	otherAudience := testTokenConfig()
	otherAudience.Audience = "someone-else"
	wrongAud, _, err := env.tokens.Generate(otherAudience, TokenClaim{Name: UserIDClaim, Value: "u1"})
	require.NoError(t, err)

	noUser := env.token(t)

	revoked := env.token(t, TokenClaim{Name: UserIDClaim, Value: "u2"})
	require.NoError(t, env.ledger.Kill(context.Background(), revoked))

	expiredSvc := NewTokenServiceWithClock(func() time.Time { return testNow.Add(-2 * time.Hour) })
	expired, _, err := expiredSvc.Generate(testTokenConfig(), TokenClaim{Name: UserIDClaim, Value: "u1"})
	require.NoError(t, err)

	otherSecret := testTokenConfig()
	otherSecret.Secret = []byte("ffffffffffffffffffffffffffffffff")
	forged, _, err := env.tokens.Generate(otherSecret, TokenClaim{Name: UserIDClaim, Value: "u1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		auth    string
		apiKey  string
		reasons []string
	}{
		{
			name:    "wrong audience and missing api key",
			auth:    "Bearer " + wrongAud,
			reasons: []string{ReasonAudienceInvalid, ReasonAPIKeyMissing},
		},
		{
			name:    "missing user id and invalid api key",
			auth:    "Bearer " + noUser,
			apiKey:  "unknown",
			reasons: []string{ReasonUserIDInvalid, ReasonAPIKeyInvalid},
		},
		{
			name:    "revoked token",
			auth:    "Bearer " + revoked,
			apiKey:  testAPIKey,
			reasons: []string{ReasonTokenRevoked},
		},
		{
			name:    "missing token",
			apiKey:  testAPIKey,
			reasons: []string{ReasonTokenMissing},
		},
		{
			name:    "expired token",
			auth:    "Bearer " + expired,
			apiKey:  testAPIKey,
			reasons: []string{ReasonTokenInvalid},
		},
		{
			name:    "bad signature",
			auth:    "Bearer " + forged,
			apiKey:  testAPIKey,
			reasons: []string{ReasonTokenInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, reasons, err := env.gate.CheckJWT(context.Background(), tt.auth, tt.apiKey)
			require.NoError(t, err)
			assert.Nil(t, principal)
			assert.Equal(t, tt.reasons, reasons)
		})
	}
}

func TestRequireJWTRejectsWithJoinedReasons(t *testing.T) {
	env := newTestEnv(t)
	otherAudience := testTokenConfig()
	otherAudience.Audience = "someone-else"
	token, _, err := env.tokens.Generate(otherAudience, TokenClaim{Name: UserIDClaim, Value: "u1"})
	require.NoError(t, err)

	called := false
	h := env.gate.RequireJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/authenticate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid or missing token or API key, Audience is invalid, API key is missing", body.Message)
}

func TestRequireJWTStoresPrincipal(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, TokenClaim{Name: UserIDClaim, Value: "u1"})

	var got Principal
	h := env.gate.RequireJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/authenticate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", got.UserID)
}

func TestRequireAPIKey(t *testing.T) {
	env := newTestEnv(t)
	h := env.gate.RequireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "No valid API key provided")

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(APIKeyHeader, testAPIKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	h := env.gate.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		user   string
		pass   string
		status int
	}{
		{"valid", "admin", "s3cret", http.StatusOK},
		{"wrong password", "admin", "nope", http.StatusUnauthorized},
		{"wrong user", "root", "s3cret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cleanup", nil)
			req.SetBasicAuth(tt.user, tt.pass)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cleanup", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "abc", BearerToken("  Bearer   abc "))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken("BearerXYZ"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken(""))
}

func TestCheckJWTRequiresBearerScheme(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, TokenClaim{Name: UserIDClaim, Value: "u1"})

	for _, header := range []string{token, "Bearer" + token} {
		principal, reasons, err := env.gate.CheckJWT(context.Background(), header, testAPIKey)
		require.NoError(t, err)
		assert.Nil(t, principal)
		assert.Equal(t, []string{ReasonTokenMissing}, reasons)
	}
}
