package agenda

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/agenda-api/internal/apperr"
)

func (e *Engine) CreateTask(ctx context.Context, callerID string, t Task) (*Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if t.ID = strings.TrimSpace(t.ID); t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.UserID = callerID
	t.CreatedAt = e.now().UTC()

	if err := e.repos.Tasks.Insert(ctx, &t); err != nil {
		if errors.Is(err, ErrTaskExists) {
			return nil, apperr.Conflict("task already exists")
		}
		return nil, apperr.Conflict("failed to create task").WithCause(err)
	}
	return &t, nil
}

func (e *Engine) GetTask(ctx context.Context, callerID, id string) (*Task, error) {
	return e.ownedTask(ctx, callerID, id)
}

func (e *Engine) UpdateTask(ctx context.Context, callerID string, t Task) (*Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	existing, err := e.ownedTask(ctx, callerID, t.ID)
	if err != nil {
		return nil, err
	}
	t.UserID = existing.UserID
	t.CreatedAt = existing.CreatedAt

	if err := e.repos.Tasks.Replace(ctx, &t); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, apperr.Conflict("failed to update task").WithCause(err)
	}
	return &t, nil
}

func (e *Engine) DeleteTask(ctx context.Context, callerID, id string) error {
	if _, err := e.ownedTask(ctx, callerID, id); err != nil {
		return err
	}
	if err := e.repos.Tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return apperr.NotFound("task not found")
		}
		return apperr.Conflict("failed to delete task").WithCause(err)
	}
	return nil
}

func (e *Engine) ownedTask(ctx context.Context, callerID, id string) (*Task, error) {
	t, err := e.repos.Tasks.Get(ctx, id)
	if err != nil {
		return nil, loadError(err, ErrTaskNotFound, "task")
	}
	if t.UserID != callerID {
		return nil, apperr.Forbidden("you are not the owner of this task")
	}
	return t, nil
}

func (e *Engine) CreateReminder(ctx context.Context, callerID string, r Reminder) (*Reminder, error) {
	if strings.TrimSpace(r.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if r.ID = strings.TrimSpace(r.ID); r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.UserID = callerID
	r.CreatedAt = e.now().UTC()

	if err := e.repos.Reminders.Insert(ctx, &r); err != nil {
		if errors.Is(err, ErrReminderExists) {
			return nil, apperr.Conflict("reminder already exists")
		}
		return nil, apperr.Conflict("failed to create reminder").WithCause(err)
	}
	return &r, nil
}

func (e *Engine) GetReminder(ctx context.Context, callerID, id string) (*Reminder, error) {
	return e.ownedReminder(ctx, callerID, id)
}

func (e *Engine) UpdateReminder(ctx context.Context, callerID string, r Reminder) (*Reminder, error) {
	if strings.TrimSpace(r.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	existing, err := e.ownedReminder(ctx, callerID, r.ID)
	if err != nil {
		return nil, err
	}
	r.UserID = existing.UserID
	r.CreatedAt = existing.CreatedAt

	if err := e.repos.Reminders.Replace(ctx, &r); err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return nil, apperr.NotFound("reminder not found")
		}
		return nil, apperr.Conflict("failed to update reminder").WithCause(err)
	}
	return &r, nil
}

func (e *Engine) DeleteReminder(ctx context.Context, callerID, id string) error {
	if _, err := e.ownedReminder(ctx, callerID, id); err != nil {
		return err
	}
	if err := e.repos.Reminders.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return apperr.NotFound("reminder not found")
		}
		return apperr.Conflict("failed to delete reminder").WithCause(err)
	}
	return nil
}

func (e *Engine) ownedReminder(ctx context.Context, callerID, id string) (*Reminder, error) {
	r, err := e.repos.Reminders.Get(ctx, id)
	if err != nil {
		return nil, loadError(err, ErrReminderNotFound, "reminder")
	}
	if r.UserID != callerID {
		return nil, apperr.Forbidden("you are not the owner of this reminder")
	}
	return r, nil
}
