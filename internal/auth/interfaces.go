package auth

import (
	"context"
	"time"
)

// APIKeyRepository stores API keys, one per email.
type APIKeyRepository interface {
	GetByKey(ctx context.Context, key string) (*APIKey, error)
	GetByEmail(ctx context.Context, email string) (*APIKey, error)
	// Upsert replaces the key stored for k.Email or inserts a new one.
	Upsert(ctx context.Context, k *APIKey) error
}

// RevocationLedger is the append-only set of killed access tokens.
type RevocationLedger interface {
	// Kill records token. Killing an already killed token is not an error.
	Kill(ctx context.Context, token string) error
	IsKilled(ctx context.Context, token string) (bool, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimiter throttles unauthenticated endpoints per client IP.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
}
