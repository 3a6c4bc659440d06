package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/agenda-api/internal/logging"
)

// CachedLedger fronts a RevocationLedger with Redis. Each killed token is
// also cached until its own expiry, so a token stays rejected even after a
// retention sweep has purged it from the underlying ledger.
type CachedLedger struct {
	next   RevocationLedger
	client *redis.Client
	logger *logging.Logger
	now    func() time.Time
}

func NewCachedLedger(next RevocationLedger, client *redis.Client, logger *logging.Logger) *CachedLedger {
	return &CachedLedger{next: next, client: client, logger: logger, now: time.Now}
}

// getKilledKey generates the Redis key for a killed token marker
func getKilledKey(token string) string {
	return fmt.Sprintf("killed_token:%s", hashToken(token))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (c *CachedLedger) Kill(ctx context.Context, token string) error {
	if err := c.next.Kill(ctx, token); err != nil {
		return err
	}

	exp, ok := tokenExpiry(token)
	if !ok {
		return nil
	}
	ttl := exp.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, getKilledKey(token), "1", ttl).Err(); err != nil {
		c.logger.Warn("failed to cache killed token", "error", err)
	}
	return nil
}

func (c *CachedLedger) IsKilled(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, getKilledKey(token)).Result()
	if err != nil {
		c.logger.Warn("failed to read killed token cache, falling back to ledger", "error", err)
	} else if n > 0 {
		return true, nil
	}

	return c.next.IsKilled(ctx, token)
}

// DeleteCreatedBefore only touches the underlying ledger. Cached entries
// expire on their own.
func (c *CachedLedger) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return c.next.DeleteCreatedBefore(ctx, cutoff)
}
