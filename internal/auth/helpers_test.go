package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/user"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const testAPIKey = "ValidKey12345678"

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Issuer:    "agenda-api",
		Audience:  "agenda-clients",
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		ExpiresIn: time.Hour,
	}
}

type testEnv struct {
	users   *user.MemoryRepository
	keyRepo *MemoryAPIKeyRepository
	keys    *KeyService
	ledger  *MemoryLedger
	tokens  *TokenService
	gate    *Gate
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := func() time.Time { return testNow }

	env := &testEnv{
		users:   user.NewMemoryRepository(),
		keyRepo: NewMemoryAPIKeyRepository(),
		ledger:  NewMemoryLedger(),
		tokens:  NewTokenServiceWithClock(clock),
	}
	env.keys = NewKeyService(env.keyRepo, clock)
	env.gate = NewGate(env.keys, env.ledger, testTokenConfig(), "admin", "s3cret")
	env.gate.now = clock

	logger := logging.New(slog.DiscardHandler)
	env.service = NewService(env.users, env.keys, env.ledger, env.tokens, testTokenConfig(), logger)
	env.service.now = clock

	_, err := env.keys.CreateKey(context.Background(), testAPIKey, "client@example.com", testNow.Add(-time.Hour))
	require.NoError(t, err)

	return env
}

func (e *testEnv) token(t *testing.T, claims ...TokenClaim) string {
	t.Helper()
	token, _, err := e.tokens.Generate(testTokenConfig(), claims...)
	require.NoError(t, err)
	return token
}
