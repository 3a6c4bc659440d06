package agenda

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// NewMemoryRepositories returns in-process repositories.
func NewMemoryRepositories() Repositories {
	return Repositories{
		Events:    NewMemoryEventRepository(),
		Attendees: NewMemoryAttendeeRepository(),
		Tasks:     NewMemoryTaskRepository(),
		Reminders: NewMemoryReminderRepository(),
	}
}

// MemoryEventRepository keeps events in process memory.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string]Event)}
}

func (r *MemoryEventRepository) Insert(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[e.ID]; ok {
		return ErrEventExists
	}
	r.events[e.ID] = cloneEvent(*e)
	return nil
}

func (r *MemoryEventRepository) Get(_ context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	e = cloneEvent(e)
	return &e, nil
}

func (r *MemoryEventRepository) Replace(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[e.ID]
	if !ok {
		return ErrEventNotFound
	}
	next := cloneEvent(*e)
	next.Host = existing.Host
	next.CreatedAt = existing.CreatedAt
	r.events[e.ID] = next
	return nil
}

func (r *MemoryEventRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *MemoryEventRepository) ListForUser(_ context.Context, userID string, window *Window) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := []Event{}
	for _, e := range r.events {
		if !e.IsMember(userID) {
			continue
		}
		if window != nil && !window.Contains(e.From) {
			continue
		}
		events = append(events, cloneEvent(e))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].From < events[j].From })
	return events, nil
}

func (r *MemoryEventRepository) RemoveAttendee(_ context.Context, eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	e.AttendeeIDs = slices.DeleteFunc(slices.Clone(e.AttendeeIDs), func(id string) bool { return id == userID })
	r.events[eventID] = e
	return nil
}

func (r *MemoryEventRepository) ListCreatedBefore(_ context.Context, cutoff time.Time) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := []Event{}
	for _, e := range r.events {
		if e.CreatedAt.Before(cutoff) {
			events = append(events, cloneEvent(e))
		}
	}
	return events, nil
}

func (r *MemoryEventRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.events {
		if e.CreatedAt.Before(cutoff) {
			delete(r.events, id)
			n++
		}
	}
	return n, nil
}

// MemoryAttendeeRepository keeps attendee rows in process memory.
type MemoryAttendeeRepository struct {
	mu        sync.RWMutex
	attendees map[attendeeKey]Attendee
}

type attendeeKey struct {
	eventID string
	userID  string
}

func NewMemoryAttendeeRepository() *MemoryAttendeeRepository {
	return &MemoryAttendeeRepository{attendees: make(map[attendeeKey]Attendee)}
}

func (r *MemoryAttendeeRepository) InsertMany(_ context.Context, attendees []Attendee) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range attendees {
		r.attendees[attendeeKey{eventID: a.EventID, userID: a.UserID}] = a
	}
	return nil
}

func (r *MemoryAttendeeRepository) Get(_ context.Context, eventID, userID string) (*Attendee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attendees[attendeeKey{eventID: eventID, userID: userID}]
	if !ok {
		return nil, ErrAttendeeNotFound
	}
	return &a, nil
}

func (r *MemoryAttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]Attendee, error) {
	return r.ListByEvents(ctx, []string{eventID})
}

func (r *MemoryAttendeeRepository) ListByEvents(_ context.Context, eventIDs []string) ([]Attendee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attendees := []Attendee{}
	for key, a := range r.attendees {
		if slices.Contains(eventIDs, key.eventID) {
			attendees = append(attendees, a)
		}
	}
	sort.Slice(attendees, func(i, j int) bool {
		if !attendees[i].CreatedAt.Equal(attendees[j].CreatedAt) {
			return attendees[i].CreatedAt.Before(attendees[j].CreatedAt)
		}
		return attendees[i].UserID < attendees[j].UserID
	})
	return attendees, nil
}

func (r *MemoryAttendeeRepository) UpdateStatus(_ context.Context, eventID, userID string, isGoing bool, remindAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attendeeKey{eventID: eventID, userID: userID}
	a, ok := r.attendees[key]
	if !ok {
		return ErrAttendeeNotFound
	}
	a.IsGoing = isGoing
	a.RemindAt = remindAt
	r.attendees[key] = a
	return nil
}

func (r *MemoryAttendeeRepository) DeleteMany(_ context.Context, eventID string, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, userID := range userIDs {
		delete(r.attendees, attendeeKey{eventID: eventID, userID: userID})
	}
	return nil
}

func (r *MemoryAttendeeRepository) DeleteByEvent(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.attendees {
		if key.eventID == eventID {
			delete(r.attendees, key)
		}
	}
	return nil
}

func (r *MemoryAttendeeRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, a := range r.attendees {
		if a.CreatedAt.Before(cutoff) {
			delete(r.attendees, key)
			n++
		}
	}
	return n, nil
}

// MemoryTaskRepository keeps tasks in process memory.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[string]Task)}
}

func (r *MemoryTaskRepository) Insert(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return ErrTaskExists
	}
	r.tasks[t.ID] = *t
	return nil
}

func (r *MemoryTaskRepository) Get(_ context.Context, id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &t, nil
}

func (r *MemoryTaskRepository) Replace(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[t.ID]
	if !ok {
		return ErrTaskNotFound
	}
	next := *t
	next.UserID = existing.UserID
	next.CreatedAt = existing.CreatedAt
	r.tasks[t.ID] = next
	return nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryTaskRepository) ListForUser(_ context.Context, userID string, window *Window) ([]Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []Task{}
	for _, t := range r.tasks {
		if t.UserID == userID && (window == nil || window.Contains(t.Time)) {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Time < tasks[j].Time })
	return tasks, nil
}

func (r *MemoryTaskRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

// MemoryReminderRepository keeps reminders in process memory.
type MemoryReminderRepository struct {
	mu        sync.RWMutex
	reminders map[string]Reminder
}

func NewMemoryReminderRepository() *MemoryReminderRepository {
	return &MemoryReminderRepository{reminders: make(map[string]Reminder)}
}

func (r *MemoryReminderRepository) Insert(_ context.Context, rem *Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reminders[rem.ID]; ok {
		return ErrReminderExists
	}
	r.reminders[rem.ID] = *rem
	return nil
}

func (r *MemoryReminderRepository) Get(_ context.Context, id string) (*Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rem, ok := r.reminders[id]
	if !ok {
		return nil, ErrReminderNotFound
	}
	return &rem, nil
}

func (r *MemoryReminderRepository) Replace(_ context.Context, rem *Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.reminders[rem.ID]
	if !ok {
		return ErrReminderNotFound
	}
	next := *rem
	next.UserID = existing.UserID
	next.CreatedAt = existing.CreatedAt
	r.reminders[rem.ID] = next
	return nil
}

func (r *MemoryReminderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reminders[id]; !ok {
		return ErrReminderNotFound
	}
	delete(r.reminders, id)
	return nil
}

func (r *MemoryReminderRepository) ListForUser(_ context.Context, userID string, window *Window) ([]Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reminders := []Reminder{}
	for _, rem := range r.reminders {
		if rem.UserID == userID && (window == nil || window.Contains(rem.Time)) {
			reminders = append(reminders, rem)
		}
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].Time < reminders[j].Time })
	return reminders, nil
}

func (r *MemoryReminderRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rem := range r.reminders {
		if rem.CreatedAt.Before(cutoff) {
			delete(r.reminders, id)
			n++
		}
	}
	return n, nil
}

func cloneEvent(e Event) Event {
	e.PhotoKeys = slices.Clone(nonNil(e.PhotoKeys))
	e.AttendeeIDs = slices.Clone(nonNil(e.AttendeeIDs))
	return e
}
