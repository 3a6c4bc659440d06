package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyServiceValidityWindow(t *testing.T) {
	ctx := context.Background()
	now := testNow
	svc := NewKeyService(NewMemoryAPIKeyRepository(), func() time.Time { return now })

	k, err := svc.CreateKey(ctx, "FutureKey1234567", "future@example.com", now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(1, 0, 0), k.ExpiresAt)

	valid, err := svc.IsValidKey(ctx, "FutureKey1234567")
	require.NoError(t, err)
	assert.False(t, valid, "key is not valid before validFrom")

	now = now.Add(48 * time.Hour)
	valid, err = svc.IsValidKey(ctx, "FutureKey1234567")
	require.NoError(t, err)
	assert.True(t, valid)

	now = testNow.AddDate(1, 0, 1)
	valid, err = svc.IsValidKey(ctx, "FutureKey1234567")
	require.NoError(t, err)
	assert.False(t, valid, "key is not valid after expiry")
}

func TestKeyServiceUnknownKey(t *testing.T) {
	svc := NewKeyService(NewMemoryAPIKeyRepository(), nil)

	valid, err := svc.IsValidKey(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = svc.IsValidKey(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestKeyServiceUpsertReplacesKeyOfEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAPIKeyRepository()
	svc := NewKeyService(repo, func() time.Time { return testNow })

	first, err := svc.IssueKey(ctx, "owner@example.com", testNow)
	require.NoError(t, err)
	second, err := svc.IssueKey(ctx, "owner@example.com", testNow)
	require.NoError(t, err)
	require.NotEqual(t, first.Key, second.Key)

	valid, err := svc.IsValidKey(ctx, first.Key)
	require.NoError(t, err)
	assert.False(t, valid, "replaced key no longer validates")

	stored, err := repo.GetByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.Key, stored.Key)
	assert.Equal(t, first.ID, stored.ID)
}

func TestGenerateKeyShape(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, key, apiKeyLength)
	for _, r := range key {
		assert.Contains(t, apiKeyAlphabet, string(r))
	}
}
