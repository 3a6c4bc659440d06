package cleanup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/agenda"
	"github.com/redmonkez12/agenda-api/internal/auth"
	"github.com/redmonkez12/agenda-api/internal/blob"
	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/user"
)

type fixture struct {
	service *Service
	repos   agenda.Repositories
	users   *user.MemoryRepository
	blobs   *blob.MemoryStore
	cutoff  time.Time
}

type brokenSweeper struct{}

func (brokenSweeper) DeleteCreatedBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func newFixture(t *testing.T, extra ...Collection) *fixture {
	t.Helper()
	ctx := context.Background()

	cutoff := time.Now().Add(time.Hour)
	old := cutoff.Add(-48 * time.Hour)
	fresh := cutoff.Add(time.Hour)

	users := user.NewMemoryRepository()
	require.NoError(t, users.Create(ctx, &user.User{ID: "old", Email: "old@example.com", CreatedAt: old}))
	require.NoError(t, users.Create(ctx, &user.User{ID: "new", Email: "new@example.com", CreatedAt: fresh}))

	blobs := blob.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, "old-photo", []byte("a"), "image/png"))
	require.NoError(t, blobs.Put(ctx, "new-photo", []byte("b"), "image/png"))

	repos := agenda.NewMemoryRepositories()
	require.NoError(t, repos.Events.Insert(ctx, &agenda.Event{ID: "e-old", Title: "Old", Host: "old", PhotoKeys: []string{"old-photo"}, CreatedAt: old}))
	require.NoError(t, repos.Events.Insert(ctx, &agenda.Event{ID: "e-new", Title: "New", Host: "new", PhotoKeys: []string{"new-photo"}, CreatedAt: fresh}))
	require.NoError(t, repos.Attendees.InsertMany(ctx, []agenda.Attendee{
		{UserID: "old", EventID: "e-old", CreatedAt: old},
		{UserID: "new", EventID: "e-new", CreatedAt: fresh},
	}))
	require.NoError(t, repos.Tasks.Insert(ctx, &agenda.Task{ID: "t-old", UserID: "old", CreatedAt: old}))
	require.NoError(t, repos.Reminders.Insert(ctx, &agenda.Reminder{ID: "r-old", UserID: "old", CreatedAt: old}))

	ledger := auth.NewMemoryLedger()
	require.NoError(t, ledger.Kill(ctx, "revoked-token"))

	collections := append([]Collection{
		{Name: "killedToken", Sweeper: ledger},
		{Name: "user", Sweeper: users},
		{Name: "event", Sweeper: repos.Events},
		{Name: "task", Sweeper: repos.Tasks},
		{Name: "reminder", Sweeper: repos.Reminders},
		{Name: "attendee", Sweeper: repos.Attendees},
	}, extra...)

	logger := logging.New(slog.DiscardHandler)
	return &fixture{
		service: NewService(repos.Events, blobs, logger, collections...),
		repos:   repos,
		users:   users,
		blobs:   blobs,
		cutoff:  cutoff,
	}
}

func TestCleanupOldEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.CleanupOldEntries(ctx, f.cutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(6), result.Deleted)
	assert.Equal(t, 1, result.EventsSwept)
	assert.Equal(t, 1, result.PhotoKeys)
	assert.Equal(t, map[string]int64{
		"killedToken": 1, "user": 1, "event": 1, "task": 1, "reminder": 1, "attendee": 1,
	}, result.Collections)
	assert.Empty(t, result.Failed)

	_, ok := f.blobs.Get("old-photo")
	assert.False(t, ok)
	_, ok = f.blobs.Get("new-photo")
	assert.True(t, ok)

	_, err = f.repos.Events.Get(ctx, "e-new")
	assert.NoError(t, err)
	_, err = f.users.GetByID(ctx, "new")
	assert.NoError(t, err)
	_, err = f.users.GetByID(ctx, "old")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestCleanupIsolatesFailures(t *testing.T) {
	f := newFixture(t, Collection{Name: "broken", Sweeper: brokenSweeper{}})

	result, err := f.service.CleanupOldEntries(context.Background(), f.cutoff)
	require.NoError(t, err)

	assert.Equal(t, []string{"broken"}, result.Failed)
	assert.Equal(t, int64(6), result.Deleted)
	assert.NotContains(t, result.Collections, "broken")
}

func TestSchedulerRunOnceUsesRetention(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.service, time.Hour, 24*time.Hour, logging.New(slog.DiscardHandler))
	s.now = func() time.Time { return f.cutoff.Add(24 * time.Hour) }

	result := s.RunOnce(context.Background())
	require.NotNil(t, result)
	assert.Equal(t, int64(6), result.Deleted)
}

func TestSchedulerDisabled(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.service, 0, time.Hour, logging.New(slog.DiscardHandler))

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled scheduler should return immediately")
	}
}

func TestCleanupHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.service)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"cleanUpBefore":"` + f.cutoff.UTC().Format(time.RFC3339Nano) + `"}`)
	h.Cleanup(rec, httptest.NewRequest(http.MethodPost, "/cleanup", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deletedCount":6`)

	for _, payload := range []string{`{"cleanUpBefore":"last tuesday"}`, `not json`} {
		rec = httptest.NewRecorder()
		h.Cleanup(rec, httptest.NewRequest(http.MethodPost, "/cleanup", bytes.NewBufferString(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}
