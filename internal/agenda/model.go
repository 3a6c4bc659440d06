package agenda

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrEventExists      = errors.New("event already exists")
	ErrAttendeeNotFound = errors.New("attendee not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskExists       = errors.New("task already exists")
	ErrReminderNotFound = errors.New("reminder not found")
	ErrReminderExists   = errors.New("reminder already exists")
)

// Event is a calendar entry owned by its host. The host is always one of
// AttendeeIDs. Times are epoch milliseconds.
type Event struct {
	ID          string
	Title       string
	Description *string
	From        int64
	To          int64
	Host        string
	PhotoKeys   []string
	AttendeeIDs []string
	CreatedAt   time.Time
}

// IsMember reports whether userID hosts or attends the event.
func (e *Event) IsMember(userID string) bool {
	if e.Host == userID {
		return true
	}
	for _, id := range e.AttendeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Attendee is one user's participation in an event, keyed by (UserID, EventID).
type Attendee struct {
	UserID    string
	EventID   string
	Email     string
	FullName  string
	IsGoing   bool
	RemindAt  int64
	CreatedAt time.Time
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	UserID      string    `json:"-"`
	Time        int64     `json:"time"`
	RemindAt    int64     `json:"remindAt"`
	IsDone      bool      `json:"isDone"`
	CreatedAt   time.Time `json:"-"`
}

type Reminder struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	UserID      string    `json:"-"`
	Time        int64     `json:"time"`
	RemindAt    int64     `json:"remindAt"`
	CreatedAt   time.Time `json:"-"`
}

// Window is a half-open range [Start, End) of epoch milliseconds.
type Window struct {
	Start int64
	End   int64
}

// Contains reports whether ms lies in the window.
func (w Window) Contains(ms int64) bool {
	return ms >= w.Start && ms < w.End
}

// DayWindow returns the UTC calendar day containing t.
func DayWindow(t time.Time) Window {
	start := t.UTC().Truncate(24 * time.Hour)
	return Window{Start: start.UnixMilli(), End: start.Add(24 * time.Hour).UnixMilli()}
}

// EventRepository persists events. A nil window means no time restriction.
type EventRepository interface {
	Insert(ctx context.Context, e *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	Replace(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	// ListForUser returns events hosted or attended by userID whose From
	// lies in window, ordered by From.
	ListForUser(ctx context.Context, userID string, window *Window) ([]Event, error)
	RemoveAttendee(ctx context.Context, eventID, userID string) error
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Event, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttendeeRepository persists attendee rows.
type AttendeeRepository interface {
	InsertMany(ctx context.Context, attendees []Attendee) error
	Get(ctx context.Context, eventID, userID string) (*Attendee, error)
	ListByEvent(ctx context.Context, eventID string) ([]Attendee, error)
	ListByEvents(ctx context.Context, eventIDs []string) ([]Attendee, error)
	UpdateStatus(ctx context.Context, eventID, userID string, isGoing bool, remindAt int64) error
	DeleteMany(ctx context.Context, eventID string, userIDs []string) error
	DeleteByEvent(ctx context.Context, eventID string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TaskRepository persists tasks. ListForUser filters on Time.
type TaskRepository interface {
	Insert(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Replace(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string, window *Window) ([]Task, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReminderRepository persists reminders. ListForUser filters on Time.
type ReminderRepository interface {
	Insert(ctx context.Context, r *Reminder) error
	Get(ctx context.Context, id string) (*Reminder, error)
	Replace(ctx context.Context, r *Reminder) error
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string, window *Window) ([]Reminder, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories groups the stores the engine works against.
type Repositories struct {
	Events    EventRepository
	Attendees AttendeeRepository
	Tasks     TaskRepository
	Reminders ReminderRepository
}
