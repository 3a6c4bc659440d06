package agenda

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/blob"
	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/user"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	hostID  = "user-host"
	aliceID = "user-alice"
	bobID   = "user-bob"
)

type testEnv struct {
	engine *Engine
	repos  Repositories
	users  *user.MemoryRepository
	blobs  *blob.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore uses store for blobs when non-nil.
func newTestEnvWithStore(t *testing.T, store blob.Store) *testEnv {
	t.Helper()

	users := user.NewMemoryRepository()
	for _, u := range []user.User{
		{ID: hostID, Email: "host@example.com", FullName: "Hana Host"},
		{ID: aliceID, Email: "alice@example.com", FullName: "Alice Attendee"},
		{ID: bobID, Email: "bob@example.com", FullName: "Bob Outsider"},
	} {
		u.CreatedAt = testNow
		require.NoError(t, users.Create(context.Background(), &u))
	}

	mem := blob.NewMemoryStore()
	if store == nil {
		store = mem
	}

	repos := NewMemoryRepositories()
	engine := NewEngine(repos, users, store, Config{}, logging.New(slog.DiscardHandler))
	engine.now = func() time.Time { return testNow }

	return &testEnv{engine: engine, repos: repos, users: users, blobs: mem}
}

func (env *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.engine.Wait(ctx))
}

// createEvent creates an event hosted by hostID with alice attending.
func (env *testEnv) createEvent(t *testing.T, id string, from int64, photos int) *EventView {
	t.Helper()
	view, err := env.engine.CreateEvent(context.Background(), hostID, CreateEventInput{
		ID:          id,
		Title:       "Standup",
		From:        from,
		To:          from + time.Hour.Milliseconds(),
		RemindAt:    from - 10*time.Minute.Milliseconds(),
		AttendeeIDs: []string{aliceID},
	}, testPhotos(photos))
	require.NoError(t, err)
	return view
}

func testPhotos(n int) []Photo {
	photos := make([]Photo, n)
	for i := range photos {
		photos[i] = Photo{Data: []byte{0xff, 0xd8, byte(i)}, ContentType: "image/jpeg"}
	}
	return photos
}

// flakyStore fails Put for the configured call number.
type flakyStore struct {
	*blob.MemoryStore

	mu     sync.Mutex
	calls  int
	failAt int
}

func (s *flakyStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls == s.failAt
	s.mu.Unlock()

	if fail {
		return errors.New("bucket unavailable")
	}
	return s.MemoryStore.Put(ctx, key, data, contentType)
}

// brokenAttendees fails DeleteByEvent until healed.
type brokenAttendees struct {
	AttendeeRepository
	broken bool
}

func (b *brokenAttendees) DeleteByEvent(ctx context.Context, eventID string) error {
	if b.broken {
		return errors.New("attendee collection unavailable")
	}
	return b.AttendeeRepository.DeleteByEvent(ctx, eventID)
}
