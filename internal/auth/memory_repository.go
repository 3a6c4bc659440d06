package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryAPIKeyRepository keeps API keys in process memory, indexed by email.
type MemoryAPIKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

func NewMemoryAPIKeyRepository() *MemoryAPIKeyRepository {
	return &MemoryAPIKeyRepository{keys: make(map[string]APIKey)}
}

func (r *MemoryAPIKeyRepository) GetByKey(_ context.Context, key string) (*APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range r.keys {
		if k.Key == key {
			return &k, nil
		}
	}
	return nil, ErrAPIKeyNotFound
}

func (r *MemoryAPIKeyRepository) GetByEmail(_ context.Context, email string) (*APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[email]
	if !ok {
		return nil, ErrAPIKeyNotFound
	}
	return &k, nil
}

func (r *MemoryAPIKeyRepository) Upsert(_ context.Context, k *APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *k
	if existing, ok := r.keys[k.Email]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}
	r.keys[k.Email] = stored
	return nil
}

// MemoryLedger keeps killed tokens in process memory.
type MemoryLedger struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tokens: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLedger) Kill(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tokens[token]; !ok {
		l.tokens[token] = l.now()
	}
	return nil
}

func (l *MemoryLedger) IsKilled(_ context.Context, token string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.tokens[token]
	return ok, nil
}

func (l *MemoryLedger) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for token, createdAt := range l.tokens {
		if createdAt.Before(cutoff) {
			delete(l.tokens, token)
			n++
		}
	}
	return n, nil
}
