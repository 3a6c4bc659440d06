package agenda

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/user"
)

type CreateEventInput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	From        int64    `json:"from"`
	To          int64    `json:"to"`
	RemindAt    int64    `json:"remindAt"`
	AttendeeIDs []string `json:"attendeeIds"`
}

type UpdateEventInput struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      *string  `json:"description"`
	From             int64    `json:"from"`
	To               int64    `json:"to"`
	RemindAt         int64    `json:"remindAt"`
	AttendeeIDs      []string `json:"attendeeIds"`
	DeletedPhotoKeys []string `json:"deletedPhotoKeys"`
	IsGoing          bool     `json:"isGoing"`
}

type AttendeeSummary struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type AttendeeCheck struct {
	DoesUserExist bool             `json:"doesUserExist"`
	Attendee      *AttendeeSummary `json:"attendee"`
}

// CreateEvent stores a new event hosted by the caller, uploads its photos
// and creates an attendee row for every attendee. Unknown attendee ids are
// dropped.
func (e *Engine) CreateEvent(ctx context.Context, callerID string, in CreateEventInput, photos []Photo) (*EventView, error) {
	if err := validateEvent(in.Title, in.From, in.To); err != nil {
		return nil, err
	}
	if len(photos) > e.cfg.MaxPhotos {
		return nil, e.tooManyPhotos()
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	attendeeIDs := withMember(unique(in.AttendeeIDs), callerID)
	known, err := e.lookupUsers(ctx, attendeeIDs)
	if err != nil {
		return nil, err
	}
	if _, ok := known[callerID]; !ok {
		return nil, apperr.NotFound("user not found")
	}
	attendeeIDs = keepKnown(attendeeIDs, known)

	keys, err := e.uploadPhotos(ctx, photos)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	ev := &Event{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		From:        in.From,
		To:          in.To,
		Host:        callerID,
		PhotoKeys:   keys,
		AttendeeIDs: attendeeIDs,
		CreatedAt:   now,
	}
	if err := e.repos.Events.Insert(ctx, ev); err != nil {
		e.deleteBlobsAsync(ctx, keys)
		if errors.Is(err, ErrEventExists) {
			return nil, apperr.Conflict("event already exists")
		}
		return nil, apperr.Conflict("failed to create event").WithCause(err)
	}

	rows := attendeeRows(ev, attendeeIDs, known, in.RemindAt, now)
	if err := e.repos.Attendees.InsertMany(ctx, rows); err != nil {
		return nil, apperr.Conflict("an error happened when adding the attendees").WithCause(err)
	}

	e.logger.Info("event created", "event_id", ev.ID, "attendees", len(attendeeIDs), "photos", len(keys))
	return e.buildView(ctx, callerID, ev, rows)
}

// GetEvent returns an event the caller hosts or attends.
func (e *Engine) GetEvent(ctx context.Context, callerID, eventID string) (*EventView, error) {
	var (
		ev        *Event
		attendees []Attendee
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ev, err = e.repos.Events.Get(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		attendees, err = e.repos.Attendees.ListByEvent(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, loadError(err, ErrEventNotFound, "event")
	}

	if !ev.IsMember(callerID) {
		return nil, apperr.Forbidden("you are not an attendee of this event")
	}
	return e.buildView(ctx, callerID, ev, attendees)
}

// UpdateEvent applies in to the event. The host replaces the event; any
// other attendee can only change their own RSVP and reminder, so the rest
// of the input and any photos are ignored for them.
func (e *Engine) UpdateEvent(ctx context.Context, callerID string, in UpdateEventInput, photos []Photo) (*EventView, error) {
	ev, err := e.repos.Events.Get(ctx, in.ID)
	if err != nil {
		return nil, loadError(err, ErrEventNotFound, "event")
	}
	if !ev.IsMember(callerID) {
		return nil, apperr.Forbidden("you are not an attendee of this event")
	}
	if ev.Host != callerID {
		return e.updateAsAttendee(ctx, callerID, ev, in)
	}

	if err := validateEvent(in.Title, in.From, in.To); err != nil {
		return nil, err
	}

	deletedKeys := intersect(unique(in.DeletedPhotoKeys), ev.PhotoKeys)
	remainingKeys := subtract(ev.PhotoKeys, deletedKeys)
	if len(remainingKeys)+len(photos) > e.cfg.MaxPhotos {
		return nil, e.tooManyPhotos()
	}

	attendeeIDs := withMember(unique(in.AttendeeIDs), ev.Host)
	added := subtract(attendeeIDs, ev.AttendeeIDs)
	removed := subtract(ev.AttendeeIDs, attendeeIDs)

	known, err := e.lookupUsers(ctx, added)
	if err != nil {
		return nil, err
	}
	added = keepKnown(added, known)
	attendeeIDs = slices.DeleteFunc(attendeeIDs, func(id string) bool {
		_, isNew := known[id]
		return !isNew && !slices.Contains(ev.AttendeeIDs, id)
	})

	keys, err := e.uploadPhotos(ctx, photos)
	if err != nil {
		return nil, err
	}

	if err := e.repos.Attendees.DeleteMany(ctx, ev.ID, removed); err != nil {
		e.deleteBlobsAsync(ctx, keys)
		return nil, apperr.Conflict("failed to remove attendees").WithCause(err)
	}

	now := e.now().UTC()
	updated := *ev
	updated.Title = in.Title
	updated.Description = in.Description
	updated.From = in.From
	updated.To = in.To
	updated.AttendeeIDs = attendeeIDs
	updated.PhotoKeys = append(slices.Clone(remainingKeys), keys...)

	if err := e.repos.Attendees.InsertMany(ctx, attendeeRows(&updated, added, known, in.RemindAt, now)); err != nil {
		e.deleteBlobsAsync(ctx, keys)
		return nil, apperr.Conflict("an error happened when adding the attendees").WithCause(err)
	}
	if err := e.repos.Attendees.UpdateStatus(ctx, ev.ID, callerID, in.IsGoing, in.RemindAt); err != nil {
		e.deleteBlobsAsync(ctx, keys)
		return nil, apperr.Conflict("failed to update attendee status").WithCause(err)
	}
	if err := e.repos.Events.Replace(ctx, &updated); err != nil {
		e.deleteBlobsAsync(ctx, keys)
		if errors.Is(err, ErrEventNotFound) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, apperr.Conflict("failed to update event").WithCause(err)
	}

	e.deleteBlobsAsync(ctx, deletedKeys)

	attendees, err := e.repos.Attendees.ListByEvent(ctx, ev.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load attendees", err)
	}

	e.logger.Info("event updated", "event_id", ev.ID,
		"attendees_added", len(added), "attendees_removed", len(removed),
		"photos_added", len(keys), "photos_deleted", len(deletedKeys))
	return e.buildView(ctx, callerID, &updated, attendees)
}

func (e *Engine) updateAsAttendee(ctx context.Context, callerID string, ev *Event, in UpdateEventInput) (*EventView, error) {
	if err := e.repos.Attendees.UpdateStatus(ctx, ev.ID, callerID, in.IsGoing, in.RemindAt); err != nil {
		if errors.Is(err, ErrAttendeeNotFound) {
			return nil, apperr.NotFound("attendee not found")
		}
		return nil, apperr.Conflict("failed to update attendee status").WithCause(err)
	}

	attendees, err := e.repos.Attendees.ListByEvent(ctx, ev.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load attendees", err)
	}
	return e.buildView(ctx, callerID, ev, attendees)
}

// DeleteEvent removes an event hosted by the caller together with its
// attendee rows. Photos are deleted in the background.
func (e *Engine) DeleteEvent(ctx context.Context, callerID, eventID string) error {
	ev, err := e.repos.Events.Get(ctx, eventID)
	if err != nil {
		return loadError(err, ErrEventNotFound, "event")
	}
	if ev.Host != callerID {
		return apperr.Forbidden("only the host can delete this event")
	}

	// Attendee rows go first so a failure leaves the event in place and the
	// delete can be retried.
	if err := e.repos.Attendees.DeleteByEvent(ctx, ev.ID); err != nil {
		return apperr.Conflict("failed to delete event attendees").WithCause(err)
	}
	if err := e.repos.Events.Delete(ctx, ev.ID); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return apperr.NotFound("event not found")
		}
		return apperr.Conflict("failed to delete event").WithCause(err)
	}

	e.deleteBlobsAsync(ctx, ev.PhotoKeys)
	e.logger.Info("event deleted", "event_id", ev.ID)
	return nil
}

// CheckAttendee looks up a user by email so they can be invited. eventID
// may be empty for events that do not exist yet.
func (e *Engine) CheckAttendee(ctx context.Context, callerID, email, eventID string) (*AttendeeCheck, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Validation("missing email parameter")
	}

	u, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return &AttendeeCheck{DoesUserExist: false}, nil
		}
		return nil, apperr.Internal("failed to look up user", err)
	}
	if u.ID == callerID {
		return nil, apperr.Conflict("you can't add yourself as attendee")
	}

	summary := &AttendeeSummary{UserID: u.ID, Email: u.Email, FullName: u.FullName}
	if eventID != "" {
		a, err := e.repos.Attendees.Get(ctx, eventID, u.ID)
		switch {
		case err == nil:
			summary.FullName = a.FullName
		case !errors.Is(err, ErrAttendeeNotFound):
			return nil, apperr.Internal("failed to load attendee", err)
		}
	}
	return &AttendeeCheck{DoesUserExist: true, Attendee: summary}, nil
}

// LeaveEvent removes the caller from an event they attend. The host
// cannot leave.
func (e *Engine) LeaveEvent(ctx context.Context, callerID, eventID string) error {
	ev, err := e.repos.Events.Get(ctx, eventID)
	if err != nil {
		return loadError(err, ErrEventNotFound, "event")
	}
	if ev.Host == callerID {
		return apperr.Forbidden("the host can't leave their own event")
	}
	if !ev.IsMember(callerID) {
		return apperr.NotFound("attendee not found")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.repos.Events.RemoveAttendee(gctx, eventID, callerID)
	})
	g.Go(func() error {
		return e.repos.Attendees.DeleteMany(gctx, eventID, []string{callerID})
	})
	if err := g.Wait(); err != nil {
		return apperr.Conflict("failed to leave event").WithCause(err)
	}
	return nil
}

func (e *Engine) lookupUsers(ctx context.Context, ids []string) (map[string]user.User, error) {
	known := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	users, err := e.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to look up attendees", err)
	}
	for _, u := range users {
		known[u.ID] = u
	}
	return known, nil
}

func (e *Engine) tooManyPhotos() error {
	return apperr.Validation(fmt.Sprintf("an event can have at most %d photos", e.cfg.MaxPhotos))
}

func validateEvent(title string, from, to int64) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation("title is required")
	}
	if from > to {
		return apperr.Validation("from must not be after to")
	}
	return nil
}

// attendeeRows builds rows for ids. The host gets hostRemindAt, everyone
// else is reminded an hour before the event starts.
func attendeeRows(ev *Event, ids []string, users map[string]user.User, hostRemindAt int64, now time.Time) []Attendee {
	rows := make([]Attendee, 0, len(ids))
	for _, id := range ids {
		u := users[id]
		remindAt := ev.From - attendeeReminderLead.Milliseconds()
		if id == ev.Host {
			remindAt = hostRemindAt
		}
		rows = append(rows, Attendee{
			UserID:    id,
			EventID:   ev.ID,
			Email:     u.Email,
			FullName:  u.FullName,
			IsGoing:   true,
			RemindAt:  remindAt,
			CreatedAt: now,
		})
	}
	return rows
}

func unique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func withMember(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func keepKnown(ids []string, known map[string]user.User) []string {
	return slices.DeleteFunc(ids, func(id string) bool {
		_, ok := known[id]
		return !ok
	})
}

func subtract(a, b []string) []string {
	out := []string{}
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	out := []string{}
	for _, s := range a {
		if slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
