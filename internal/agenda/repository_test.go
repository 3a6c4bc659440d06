package agenda

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/database"
)

func newMockRepositories(t *testing.T) (Repositories, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewBunRepositories(database.NewBunDB(sqlDB)), mock
}

func TestBunEventDeleteNotFound(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectExec(`DELETE FROM "events" .*event-1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Events.Delete(context.Background(), "event-1")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBunEventRemoveAttendee(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectExec(`UPDATE "events" .*array_remove\(attendee_ids, 'user-alice'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repos.Events.RemoveAttendee(context.Background(), "event-1", "user-alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBunAttendeeUpdateStatusNotFound(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectExec(`UPDATE "attendees" .*is_going`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Attendees.UpdateStatus(context.Background(), "event-1", "user-bob", true, 0)
	assert.ErrorIs(t, err, ErrAttendeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBunEmptyBatchesSkipQueries(t *testing.T) {
	repos, mock := newMockRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Attendees.InsertMany(ctx, nil))
	require.NoError(t, repos.Attendees.DeleteMany(ctx, "event-1", nil))
	attendees, err := repos.Attendees.ListByEvents(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, attendees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBunTaskDeleteCreatedBefore(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectExec(`DELETE FROM "tasks" .*created_at <`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repos.Tasks.DeleteCreatedBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
