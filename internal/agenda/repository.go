package agenda

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/agenda-api/internal/database"
)

// NewBunRepositories returns Postgres-backed repositories sharing db.
func NewBunRepositories(db *bun.DB) Repositories {
	return Repositories{
		Events:    &BunEventRepository{db: db},
		Attendees: &BunAttendeeRepository{db: db},
		Tasks:     &BunTaskRepository{db: db},
		Reminders: &BunReminderRepository{db: db},
	}
}

// BunEventRepository stores events in Postgres.
type BunEventRepository struct {
	db *bun.DB
}

func (r *BunEventRepository) Insert(ctx context.Context, e *Event) error {
	_, err := r.db.NewInsert().Model(mapEventToDB(e)).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEventExists
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *BunEventRepository) Get(ctx context.Context, id string) (*Event, error) {
	dbEvent := new(database.Event)
	err := r.db.NewSelect().
		Model(dbEvent).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return mapDBToEvent(dbEvent), nil
}

func (r *BunEventRepository) Replace(ctx context.Context, e *Event) error {
	res, err := r.db.NewUpdate().
		Model(mapEventToDB(e)).
		ExcludeColumn("created_at", "host").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to replace event: %w", err)
	}
	return requireRow(res, ErrEventNotFound)
}

func (r *BunEventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*database.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return requireRow(res, ErrEventNotFound)
}

func (r *BunEventRepository) ListForUser(ctx context.Context, userID string, window *Window) ([]Event, error) {
	var rows []database.Event
	q := r.db.NewSelect().
		Model(&rows).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("host = ?", userID).WhereOr("? = ANY(attendee_ids)", userID)
		}).
		Order("from_ms ASC")
	if window != nil {
		q = q.Where("from_ms >= ?", window.Start).Where("from_ms < ?", window.End)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return mapDBToEvents(rows), nil
}

func (r *BunEventRepository) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	res, err := r.db.NewUpdate().
		Model((*database.Event)(nil)).
		Set("attendee_ids = array_remove(attendee_ids, ?)", userID).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove attendee from event: %w", err)
	}
	return requireRow(res, ErrEventNotFound)
}

func (r *BunEventRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Event, error) {
	var rows []database.Event
	err := r.db.NewSelect().
		Model(&rows).
		Where("created_at < ?", cutoff).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list old events: %w", err)
	}
	return mapDBToEvents(rows), nil
}

func (r *BunEventRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteCreatedBefore(ctx, r.db, (*database.Event)(nil), cutoff)
}

// BunAttendeeRepository stores attendee rows in Postgres.
type BunAttendeeRepository struct {
	db *bun.DB
}

func (r *BunAttendeeRepository) InsertMany(ctx context.Context, attendees []Attendee) error {
	if len(attendees) == 0 {
		return nil
	}

	rows := make([]database.Attendee, 0, len(attendees))
	for _, a := range attendees {
		rows = append(rows, database.Attendee{
			UserID:    a.UserID,
			EventID:   a.EventID,
			Email:     a.Email,
			FullName:  a.FullName,
			IsGoing:   a.IsGoing,
			RemindAt:  a.RemindAt,
			CreatedAt: a.CreatedAt,
		})
	}

	if _, err := r.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert attendees: %w", err)
	}
	return nil
}

func (r *BunAttendeeRepository) Get(ctx context.Context, eventID, userID string) (*Attendee, error) {
	row := new(database.Attendee)
	err := r.db.NewSelect().
		Model(row).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	a := mapDBToAttendee(row)
	return &a, nil
}

func (r *BunAttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]Attendee, error) {
	return r.ListByEvents(ctx, []string{eventID})
}

func (r *BunAttendeeRepository) ListByEvents(ctx context.Context, eventIDs []string) ([]Attendee, error) {
	if len(eventIDs) == 0 {
		return []Attendee{}, nil
	}

	var rows []database.Attendee
	err := r.db.NewSelect().
		Model(&rows).
		Where("event_id IN (?)", bun.In(eventIDs)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}

	attendees := make([]Attendee, 0, len(rows))
	for i := range rows {
		attendees = append(attendees, mapDBToAttendee(&rows[i]))
	}
	return attendees, nil
}

func (r *BunAttendeeRepository) UpdateStatus(ctx context.Context, eventID, userID string, isGoing bool, remindAt int64) error {
	res, err := r.db.NewUpdate().
		Model((*database.Attendee)(nil)).
		Set("is_going = ?", isGoing).
		Set("remind_at = ?", remindAt).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update attendee: %w", err)
	}
	return requireRow(res, ErrAttendeeNotFound)
}

func (r *BunAttendeeRepository) DeleteMany(ctx context.Context, eventID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	_, err := r.db.NewDelete().
		Model((*database.Attendee)(nil)).
		Where("event_id = ?", eventID).
		Where("user_id IN (?)", bun.In(userIDs)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete attendees: %w", err)
	}
	return nil
}

func (r *BunAttendeeRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	_, err := r.db.NewDelete().
		Model((*database.Attendee)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete event attendees: %w", err)
	}
	return nil
}

func (r *BunAttendeeRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteCreatedBefore(ctx, r.db, (*database.Attendee)(nil), cutoff)
}

// BunTaskRepository stores tasks in Postgres.
type BunTaskRepository struct {
	db *bun.DB
}

func (r *BunTaskRepository) Insert(ctx context.Context, t *Task) error {
	_, err := r.db.NewInsert().Model(mapTaskToDB(t)).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrTaskExists
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *BunTaskRepository) Get(ctx context.Context, id string) (*Task, error) {
	row := new(database.Task)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	t := mapDBToTask(row)
	return &t, nil
}

func (r *BunTaskRepository) Replace(ctx context.Context, t *Task) error {
	res, err := r.db.NewUpdate().
		Model(mapTaskToDB(t)).
		ExcludeColumn("created_at", "user_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to replace task: %w", err)
	}
	return requireRow(res, ErrTaskNotFound)
}

func (r *BunTaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*database.Task)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireRow(res, ErrTaskNotFound)
}

func (r *BunTaskRepository) ListForUser(ctx context.Context, userID string, window *Window) ([]Task, error) {
	var rows []database.Task
	q := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("time_ms ASC")
	if window != nil {
		q = q.Where("time_ms >= ?", window.Start).Where("time_ms < ?", window.End)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, mapDBToTask(&rows[i]))
	}
	return tasks, nil
}

func (r *BunTaskRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteCreatedBefore(ctx, r.db, (*database.Task)(nil), cutoff)
}

// BunReminderRepository stores reminders in Postgres.
type BunReminderRepository struct {
	db *bun.DB
}

func (r *BunReminderRepository) Insert(ctx context.Context, rem *Reminder) error {
	_, err := r.db.NewInsert().Model(mapReminderToDB(rem)).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrReminderExists
		}
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

func (r *BunReminderRepository) Get(ctx context.Context, id string) (*Reminder, error) {
	row := new(database.Reminder)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	rem := mapDBToReminder(row)
	return &rem, nil
}

func (r *BunReminderRepository) Replace(ctx context.Context, rem *Reminder) error {
	res, err := r.db.NewUpdate().
		Model(mapReminderToDB(rem)).
		ExcludeColumn("created_at", "user_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to replace reminder: %w", err)
	}
	return requireRow(res, ErrReminderNotFound)
}

func (r *BunReminderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*database.Reminder)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return requireRow(res, ErrReminderNotFound)
}

func (r *BunReminderRepository) ListForUser(ctx context.Context, userID string, window *Window) ([]Reminder, error) {
	var rows []database.Reminder
	q := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("time_ms ASC")
	if window != nil {
		q = q.Where("time_ms >= ?", window.Start).Where("time_ms < ?", window.End)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	reminders := make([]Reminder, 0, len(rows))
	for i := range rows {
		reminders = append(reminders, mapDBToReminder(&rows[i]))
	}
	return reminders, nil
}

func (r *BunReminderRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteCreatedBefore(ctx, r.db, (*database.Reminder)(nil), cutoff)
}

func deleteCreatedBefore(ctx context.Context, db *bun.DB, model any, cutoff time.Time) (int64, error) {
	res, err := db.NewDelete().
		Model(model).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old rows: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func mapEventToDB(e *Event) *database.Event {
	return &database.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		FromMs:      e.From,
		ToMs:        e.To,
		Host:        e.Host,
		PhotoKeys:   nonNil(e.PhotoKeys),
		AttendeeIDs: nonNil(e.AttendeeIDs),
		CreatedAt:   e.CreatedAt,
	}
}

func mapDBToEvent(row *database.Event) *Event {
	return &Event{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		From:        row.FromMs,
		To:          row.ToMs,
		Host:        row.Host,
		PhotoKeys:   nonNil(row.PhotoKeys),
		AttendeeIDs: nonNil(row.AttendeeIDs),
		CreatedAt:   row.CreatedAt,
	}
}

func mapDBToEvents(rows []database.Event) []Event {
	events := make([]Event, 0, len(rows))
	for i := range rows {
		events = append(events, *mapDBToEvent(&rows[i]))
	}
	return events
}

func mapDBToAttendee(row *database.Attendee) Attendee {
	return Attendee{
		UserID:    row.UserID,
		EventID:   row.EventID,
		Email:     row.Email,
		FullName:  row.FullName,
		IsGoing:   row.IsGoing,
		RemindAt:  row.RemindAt,
		CreatedAt: row.CreatedAt,
	}
}

func mapTaskToDB(t *Task) *database.Task {
	return &database.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		UserID:      t.UserID,
		TimeMs:      t.Time,
		RemindAt:    t.RemindAt,
		IsDone:      t.IsDone,
		CreatedAt:   t.CreatedAt,
	}
}

func mapDBToTask(row *database.Task) Task {
	return Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		UserID:      row.UserID,
		Time:        row.TimeMs,
		RemindAt:    row.RemindAt,
		IsDone:      row.IsDone,
		CreatedAt:   row.CreatedAt,
	}
}

func mapReminderToDB(r *Reminder) *database.Reminder {
	return &database.Reminder{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		UserID:      r.UserID,
		TimeMs:      r.Time,
		RemindAt:    r.RemindAt,
		CreatedAt:   r.CreatedAt,
	}
}

func mapDBToReminder(row *database.Reminder) Reminder {
	return Reminder{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		UserID:      row.UserID,
		Time:        row.TimeMs,
		RemindAt:    row.RemindAt,
		CreatedAt:   row.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
