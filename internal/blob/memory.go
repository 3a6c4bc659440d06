package blob

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Object is a stored blob in MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps blobs in process memory. Presigned URLs point at a
// fake host and embed the expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *MemoryStore) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	expires := s.now().Add(ttl).Unix()
	return fmt.Sprintf("memory://blobs/%s?expires=%d", url.PathEscape(key), expires), nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	return obj, ok
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}
