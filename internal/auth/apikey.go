package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

const (
	apiKeyLength   = 16
	apiKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	apiKeyValidity = 12 // months
)

type APIKey struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Email     string    `json:"email"`
	ValidFrom time.Time `json:"validFrom"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsValidAt reports whether t lies in [ValidFrom, ExpiresAt].
func (k *APIKey) IsValidAt(t time.Time) bool {
	return !t.Before(k.ValidFrom) && !t.After(k.ExpiresAt)
}

// KeyService issues and checks API keys.
type KeyService struct {
	repo APIKeyRepository
	now  func() time.Time
}

func NewKeyService(repo APIKeyRepository, now func() time.Time) *KeyService {
	if now == nil {
		now = time.Now
	}
	return &KeyService{repo: repo, now: now}
}

// CreateKey stores key for email, replacing any previous key of that email.
// The key expires twelve months after issuance.
func (s *KeyService) CreateKey(ctx context.Context, key, email string, validFrom time.Time) (*APIKey, error) {
	now := s.now()
	k := &APIKey{
		ID:        uuid.NewString(),
		Key:       key,
		Email:     email,
		ValidFrom: validFrom,
		ExpiresAt: now.AddDate(0, apiKeyValidity, 0),
		CreatedAt: now,
	}

	if err := s.repo.Upsert(ctx, k); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}
	return k, nil
}

// IssueKey generates a fresh key for email and stores it.
func (s *KeyService) IssueKey(ctx context.Context, email string, validFrom time.Time) (*APIKey, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return s.CreateKey(ctx, key, email, validFrom)
}

// IsValidKey reports whether key exists and is inside its validity window.
func (s *KeyService) IsValidKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	k, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrAPIKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get api key: %w", err)
	}

	return k.IsValidAt(s.now()), nil
}

// GenerateKey returns a random alphanumeric API key.
func GenerateKey() (string, error) {
	return randomString(apiKeyLength)
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		b[i] = apiKeyAlphabet[idx.Int64()]
	}
	return string(b), nil
}
