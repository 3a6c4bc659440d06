// Package agenda keeps events, attendees, photos, tasks and reminders
// consistent across the document store and blob storage, and serves the
// per-user agenda views built from them.
package agenda

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/blob"
	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/user"
)

const (
	defaultMaxPhotos    = 10
	defaultMaxPhotoSize = 1_000_000
	defaultPresignTTL   = 6 * 24 * time.Hour

	// Attendees other than the host are reminded this long before the event.
	attendeeReminderLead = time.Hour

	backgroundTimeout = 30 * time.Second
	viewConcurrency   = 8
)

// UserDirectory resolves user ids and emails to users.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

type Config struct {
	MaxPhotos    int
	MaxPhotoSize int64
	PresignTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPhotos <= 0 {
		c.MaxPhotos = defaultMaxPhotos
	}
	if c.MaxPhotoSize <= 0 {
		c.MaxPhotoSize = defaultMaxPhotoSize
	}
	if c.PresignTTL <= 0 {
		c.PresignTTL = defaultPresignTTL
	}
	return c
}

// Engine implements the agenda operations. Every operation takes the
// caller's user id explicitly.
type Engine struct {
	repos  Repositories
	users  UserDirectory
	blobs  blob.Store
	cfg    Config
	logger *logging.Logger
	now    func() time.Time

	background sync.WaitGroup
}

func NewEngine(repos Repositories, users UserDirectory, blobs blob.Store, cfg Config, logger *logging.Logger) *Engine {
	return &Engine{
		repos:  repos,
		users:  users,
		blobs:  blobs,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Config returns the effective limits.
func (e *Engine) Config() Config {
	return e.cfg
}

// Wait blocks until background photo deletions finish or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deleteBlobsAsync removes keys off the request path. Failures are logged
// and otherwise ignored.
func (e *Engine) deleteBlobsAsync(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	keys = slices.Clone(keys)
	detached := context.WithoutCancel(ctx)

	e.background.Add(1)
	go func() {
		defer e.background.Done()

		ctx, cancel := context.WithTimeout(detached, backgroundTimeout)
		defer cancel()

		if err := e.blobs.DeleteMany(ctx, keys); err != nil {
			e.logger.Warn("failed to delete photos", "count", len(keys), "error", err)
			return
		}
		e.logger.Debug("deleted photos", "count", len(keys))
	}()
}

type PhotoView struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type AttendeeView struct {
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	IsGoing   bool      `json:"isGoing"`
	RemindAt  int64     `json:"remindAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventView is an event as seen by one caller. RemindAt is the caller's own
// reminder time.
type EventView struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        *string        `json:"description"`
	From               int64          `json:"from"`
	To                 int64          `json:"to"`
	Host               string         `json:"host"`
	RemindAt           int64          `json:"remindAt"`
	Photos             []PhotoView    `json:"photos"`
	Attendees          []AttendeeView `json:"attendees"`
	IsUserEventCreator bool           `json:"isUserEventCreator"`
}

type Agenda struct {
	Events    []EventView `json:"events"`
	Tasks     []Task      `json:"tasks"`
	Reminders []Reminder  `json:"reminders"`
}

func (e *Engine) buildView(ctx context.Context, callerID string, ev *Event, attendees []Attendee) (*EventView, error) {
	photos := make([]PhotoView, len(ev.PhotoKeys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range ev.PhotoKeys {
		g.Go(func() error {
			url, err := e.blobs.Presign(gctx, key, e.cfg.PresignTTL)
			if err != nil {
				return err
			}
			photos[i] = PhotoView{Key: key, URL: url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to sign photo urls", err)
	}

	view := &EventView{
		ID:                 ev.ID,
		Title:              ev.Title,
		Description:        ev.Description,
		From:               ev.From,
		To:                 ev.To,
		Host:               ev.Host,
		Photos:             photos,
		Attendees:          make([]AttendeeView, 0, len(attendees)),
		IsUserEventCreator: ev.Host == callerID,
	}
	for _, a := range attendees {
		if a.UserID == callerID {
			view.RemindAt = a.RemindAt
		}
		view.Attendees = append(view.Attendees, AttendeeView(a))
	}
	return view, nil
}

// buildViews loads the attendees of all events in one query and signs
// photo urls with bounded concurrency.
func (e *Engine) buildViews(ctx context.Context, callerID string, events []Event) ([]EventView, error) {
	if len(events) == 0 {
		return []EventView{}, nil
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	attendees, err := e.repos.Attendees.ListByEvents(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load attendees", err)
	}
	byEvent := make(map[string][]Attendee, len(events))
	for _, a := range attendees {
		byEvent[a.EventID] = append(byEvent[a.EventID], a)
	}

	views := make([]EventView, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(viewConcurrency)
	for i := range events {
		g.Go(func() error {
			view, err := e.buildView(gctx, callerID, &events[i], byEvent[events[i].ID])
			if err != nil {
				return err
			}
			views[i] = *view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// loadError maps a repository read failure to a classified error.
func loadError(err, notFound error, what string) error {
	if errors.Is(err, notFound) {
		return apperr.NotFound(what + " not found")
	}
	return apperr.Internal("failed to load "+what, err)
}
