package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/logging"
)

func newCachedLedger(t *testing.T) (*CachedLedger, *MemoryLedger, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	inner := NewMemoryLedger()
	inner.now = func() time.Time { return testNow }

	cached := NewCachedLedger(inner, client, logging.New(slog.DiscardHandler))
	cached.now = func() time.Time { return testNow }
	return cached, inner, mr
}

func TestCachedLedgerOutlivesSweep(t *testing.T) {
	env := newTestEnv(t)
	cached, inner, mr := newCachedLedger(t)
	ctx := context.Background()
	token := env.token(t)

	require.NoError(t, cached.Kill(ctx, token))
	assert.Equal(t, time.Hour, mr.TTL(getKilledKey(token)), "cached until the token expires")

	n, err := cached.DeleteCreatedBefore(ctx, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	killed, err := inner.IsKilled(ctx, token)
	require.NoError(t, err)
	assert.False(t, killed)

	killed, err = cached.IsKilled(ctx, token)
	require.NoError(t, err)
	assert.True(t, killed)

	mr.FastForward(time.Hour)
	killed, err = cached.IsKilled(ctx, token)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestCachedLedgerSkipsExpiredTokens(t *testing.T) {
	cached, inner, mr := newCachedLedger(t)
	ctx := context.Background()

	issuer := NewTokenServiceWithClock(func() time.Time { return testNow.Add(-2 * time.Hour) })
	token, expiresAt, err := issuer.Generate(testTokenConfig())
	require.NoError(t, err)
	require.True(t, expiresAt.Before(testNow))

	require.NoError(t, cached.Kill(ctx, token))
	assert.False(t, mr.Exists(getKilledKey(token)))

	killed, err := inner.IsKilled(ctx, token)
	require.NoError(t, err)
	assert.True(t, killed)
}

func TestCachedLedgerPassesOpaqueTokensThrough(t *testing.T) {
	cached, _, mr := newCachedLedger(t)
	ctx := context.Background()

	require.NoError(t, cached.Kill(ctx, "opaque-token"))
	assert.False(t, mr.Exists(getKilledKey("opaque-token")))

	killed, err := cached.IsKilled(ctx, "opaque-token")
	require.NoError(t, err)
	assert.True(t, killed)

	_, err = cached.DeleteCreatedBefore(ctx, testNow.Add(time.Minute))
	require.NoError(t, err)

	killed, err = cached.IsKilled(ctx, "opaque-token")
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestCachedLedgerFallsBackWhenRedisFails(t *testing.T) {
	env := newTestEnv(t)
	cached, inner, mr := newCachedLedger(t)
	ctx := context.Background()
	killedToken := env.token(t)
	liveToken := env.token(t, TokenClaim{Name: UserIDClaim, Value: "someone-else"})

	mr.SetError("ERR cache unavailable")

	require.NoError(t, cached.Kill(ctx, killedToken), "a cache write failure does not fail the kill")

	killed, err := inner.IsKilled(ctx, killedToken)
	require.NoError(t, err)
	assert.True(t, killed)

	killed, err = cached.IsKilled(ctx, killedToken)
	require.NoError(t, err)
	assert.True(t, killed)

	killed, err = cached.IsKilled(ctx, liveToken)
	require.NoError(t, err)
	assert.False(t, killed)
}
