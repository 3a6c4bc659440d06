package agenda

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redmonkez12/agenda-api/internal/apperr"
)

const (
	KindEvent    = "event"
	KindTask     = "task"
	KindReminder = "reminder"
)

type SyncRequest struct {
	DeletedEventIDs    []string `json:"deletedEventIds"`
	DeletedTaskIDs     []string `json:"deletedTaskIds"`
	DeletedReminderIDs []string `json:"deletedReminderIds"`
}

// SkippedItem is an id from a sync request that was not deleted.
type SkippedItem struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type SyncResult struct {
	DeletedEventIDs    []string      `json:"deletedEventIds"`
	DeletedTaskIDs     []string      `json:"deletedTaskIds"`
	DeletedReminderIDs []string      `json:"deletedReminderIds"`
	Skipped            []SkippedItem `json:"skipped"`
}

type syncOutcome struct {
	deleted []string
	skipped []SkippedItem
}

// Sync applies deletions made offline. The three lists are processed
// concurrently and every id is authorized on its own, so one missing or
// foreign id never stops the rest of the batch.
func (e *Engine) Sync(ctx context.Context, callerID string, req SyncRequest) *SyncResult {
	var (
		wg                       sync.WaitGroup
		events, tasks, reminders syncOutcome
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		events = e.syncDeletes(ctx, KindEvent, req.DeletedEventIDs, func(ctx context.Context, id string) error {
			return e.DeleteEvent(ctx, callerID, id)
		})
	}()
	go func() {
		defer wg.Done()
		tasks = e.syncDeletes(ctx, KindTask, req.DeletedTaskIDs, func(ctx context.Context, id string) error {
			return e.DeleteTask(ctx, callerID, id)
		})
	}()
	go func() {
		defer wg.Done()
		reminders = e.syncDeletes(ctx, KindReminder, req.DeletedReminderIDs, func(ctx context.Context, id string) error {
			return e.DeleteReminder(ctx, callerID, id)
		})
	}()
	wg.Wait()

	result := &SyncResult{
		DeletedEventIDs:    events.deleted,
		DeletedTaskIDs:     tasks.deleted,
		DeletedReminderIDs: reminders.deleted,
		Skipped:            make([]SkippedItem, 0, len(events.skipped)+len(tasks.skipped)+len(reminders.skipped)),
	}
	result.Skipped = append(result.Skipped, events.skipped...)
	result.Skipped = append(result.Skipped, tasks.skipped...)
	result.Skipped = append(result.Skipped, reminders.skipped...)
	return result
}

func (e *Engine) syncDeletes(ctx context.Context, kind string, ids []string, del func(context.Context, string) error) syncOutcome {
	out := syncOutcome{deleted: []string{}, skipped: []SkippedItem{}}
	for _, id := range unique(ids) {
		if err := del(ctx, id); err != nil {
			reason := skipReason(err)
			if reason == "failed" {
				e.logger.Warn("sync delete failed", "kind", kind, "id", id, "error", err)
			}
			out.skipped = append(out.skipped, SkippedItem{Kind: kind, ID: id, Reason: reason})
			continue
		}
		out.deleted = append(out.deleted, id)
	}
	return out
}

func skipReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "not found"
	case apperr.KindForbidden:
		return "forbidden"
	default:
		return "failed"
	}
}

// GetAgenda returns the caller's events, tasks and reminders for the UTC
// day containing day.
func (e *Engine) GetAgenda(ctx context.Context, callerID string, day time.Time) (*Agenda, error) {
	window := DayWindow(day)
	return e.agenda(ctx, callerID, &window)
}

// GetFullAgenda returns everything the caller hosts, attends or owns.
func (e *Engine) GetFullAgenda(ctx context.Context, callerID string) (*Agenda, error) {
	return e.agenda(ctx, callerID, nil)
}

func (e *Engine) agenda(ctx context.Context, callerID string, window *Window) (*Agenda, error) {
	var (
		events    []Event
		tasks     []Task
		reminders []Reminder
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = e.repos.Events.ListForUser(gctx, callerID, window)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = e.repos.Tasks.ListForUser(gctx, callerID, window)
		return err
	})
	g.Go(func() error {
		var err error
		reminders, err = e.repos.Reminders.ListForUser(gctx, callerID, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to load agenda", err)
	}

	views, err := e.buildViews(ctx, callerID, events)
	if err != nil {
		return nil, err
	}
	return &Agenda{Events: views, Tasks: tasks, Reminders: reminders}, nil
}
