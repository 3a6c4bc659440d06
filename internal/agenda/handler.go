package agenda

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/auth"
	"github.com/redmonkez12/agenda-api/internal/httputil"
	"github.com/redmonkez12/agenda-api/internal/logging"
)

const (
	CreateEventField = "create_event_request"
	UpdateEventField = "update_event_request"

	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// Handler exposes the agenda engine over HTTP. Every route runs behind
// the JWT gate.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// CreateEvent handles event creation
// @Summary      Create an event
// @Description  Multipart body: a create_event_request JSON part plus up to 10 photo parts named photo0..photo9
// @Tags         events
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        create_event_request formData string true "CreateEventInput as JSON"
// @Success      200 {object} EventView
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse
// @Failure      413 {object} httputil.ErrorResponse "A photo exceeds the size limit"
// @Router       /event [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var in CreateEventInput
	photos, err := h.readEventForm(w, r, CreateEventField, &in)
	if err != nil {
		respondError(w, logger, "invalid create event request", err)
		return
	}

	view, err := h.engine.CreateEvent(r.Context(), callerID, in, photos)
	if err != nil {
		respondError(w, logger, "failed to create event", err)
		return
	}
	httputil.RespondJSON(w, view, http.StatusOK)
}

// GetEvent returns one event
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        eventId query string true "Event ID"
// @Success      200 {object} EventView
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /event [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := requireQuery(w, r, "eventId")
	if !ok {
		return
	}

	view, err := h.engine.GetEvent(r.Context(), callerID, eventID)
	if err != nil {
		respondError(w, logger, "failed to get event", err)
		return
	}
	httputil.RespondJSON(w, view, http.StatusOK)
}

// UpdateEvent handles event updates
// @Summary      Update an event
// @Description  The host replaces the event. Other attendees only change isGoing and remindAt.
// @Tags         events
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        update_event_request formData string true "UpdateEventInput as JSON"
// @Success      200 {object} EventView
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse
// @Failure      413 {object} httputil.ErrorResponse
// @Router       /event [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var in UpdateEventInput
	photos, err := h.readEventForm(w, r, UpdateEventField, &in)
	if err != nil {
		respondError(w, logger, "invalid update event request", err)
		return
	}

	view, err := h.engine.UpdateEvent(r.Context(), callerID, in, photos)
	if err != nil {
		respondError(w, logger, "failed to update event", err)
		return
	}
	httputil.RespondJSON(w, view, http.StatusOK)
}

// DeleteEvent deletes an event
// @Summary      Delete an event
// @Tags         events
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        eventId query string true "Event ID"
// @Success      200
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse
// @Router       /event [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := requireQuery(w, r, "eventId")
	if !ok {
		return
	}

	if err := h.engine.DeleteEvent(r.Context(), callerID, eventID); err != nil {
		respondError(w, logger, "failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CheckAttendee looks up a user to invite
// @Summary      Check for an attendee
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        email query string true "Email of the user to invite"
// @Param        eventId query string false "Event ID"
// @Success      200 {object} AttendeeCheck
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse "Caller's own email"
// @Router       /attendee [get]
func (h *Handler) CheckAttendee(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	email, ok := requireQuery(w, r, "email")
	if !ok {
		return
	}

	check, err := h.engine.CheckAttendee(r.Context(), callerID, email, r.URL.Query().Get("eventId"))
	if err != nil {
		respondError(w, logger, "failed to check attendee", err)
		return
	}
	httputil.RespondJSON(w, check, http.StatusOK)
}

// LeaveEvent removes the caller from an event
// @Summary      Leave an event
// @Tags         events
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        eventId query string true "Event ID"
// @Success      200
// @Failure      403 {object} httputil.ErrorResponse "The host can't leave"
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /attendee [delete]
func (h *Handler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := requireQuery(w, r, "eventId")
	if !ok {
		return
	}

	if err := h.engine.LeaveEvent(r.Context(), callerID, eventID); err != nil {
		respondError(w, logger, "failed to leave event", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetAgenda returns one day of the caller's agenda
// @Summary      Get the agenda for a day
// @Description  time is any epoch millisecond within the wanted UTC day and defaults to now
// @Tags         agenda
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        time query int false "Epoch milliseconds"
// @Success      200 {object} Agenda
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /agenda [get]
func (h *Handler) GetAgenda(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	day := h.engine.now()
	if raw := r.URL.Query().Get("time"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.RespondAppError(w, apperr.Validation("the time is in an invalid format"))
			return
		}
		day = time.UnixMilli(ms)
	}

	agenda, err := h.engine.GetAgenda(r.Context(), callerID, day)
	if err != nil {
		respondError(w, logger, "failed to get agenda", err)
		return
	}
	httputil.RespondJSON(w, agenda, http.StatusOK)
}

// GetFullAgenda returns the caller's whole agenda
// @Summary      Get the full agenda
// @Tags         agenda
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Success      200 {object} Agenda
// @Router       /fullAgenda [get]
func (h *Handler) GetFullAgenda(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	agenda, err := h.engine.GetFullAgenda(r.Context(), callerID)
	if err != nil {
		respondError(w, logger, "failed to get full agenda", err)
		return
	}
	httputil.RespondJSON(w, agenda, http.StatusOK)
}

// SyncAgenda applies offline deletions
// @Summary      Sync offline deletions
// @Tags         agenda
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        request body SyncRequest true "Ids deleted on the client"
// @Success      200 {object} SyncResult
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /syncAgenda [post]
func (h *Handler) SyncAgenda(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, logger, "invalid sync request", err)
		return
	}

	result := h.engine.Sync(r.Context(), callerID, req)
	if len(result.Skipped) > 0 {
		logger.Info("sync skipped items", "skipped", len(result.Skipped))
	}
	httputil.RespondJSON(w, result, http.StatusOK)
}

// CreateTask creates a task
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        request body Task true "Task"
// @Success      200 {object} Task
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse
// @Router       /task [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var t Task
	if err := httputil.DecodeJSON(r, &t); err != nil {
		respondError(w, logger, "invalid task request", err)
		return
	}

	created, err := h.engine.CreateTask(r.Context(), callerID, t)
	if err != nil {
		respondError(w, logger, "failed to create task", err)
		return
	}
	httputil.RespondJSON(w, created, http.StatusOK)
}

// GetTask returns a task
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        taskId query string true "Task ID"
// @Success      200 {object} Task
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /task [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := requireQuery(w, r, "taskId")
	if !ok {
		return
	}

	t, err := h.engine.GetTask(r.Context(), callerID, id)
	if err != nil {
		respondError(w, logger, "failed to get task", err)
		return
	}
	httputil.RespondJSON(w, t, http.StatusOK)
}

// UpdateTask replaces a task
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        request body Task true "Task"
// @Success      200 {object} Task
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /task [put]
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var t Task
	if err := httputil.DecodeJSON(r, &t); err != nil {
		respondError(w, logger, "invalid task request", err)
		return
	}

	updated, err := h.engine.UpdateTask(r.Context(), callerID, t)
	if err != nil {
		respondError(w, logger, "failed to update task", err)
		return
	}
	httputil.RespondJSON(w, updated, http.StatusOK)
}

// DeleteTask deletes a task
// @Summary      Delete a task
// @Tags         tasks
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        taskId query string true "Task ID"
// @Success      200
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /task [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := requireQuery(w, r, "taskId")
	if !ok {
		return
	}

	if err := h.engine.DeleteTask(r.Context(), callerID, id); err != nil {
		respondError(w, logger, "failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CreateReminder creates a reminder
// @Summary      Create a reminder
// @Tags         reminders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        request body Reminder true "Reminder"
// @Success      200 {object} Reminder
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      409 {object} httputil.ErrorResponse
// @Router       /reminder [post]
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var rem Reminder
	if err := httputil.DecodeJSON(r, &rem); err != nil {
		respondError(w, logger, "invalid reminder request", err)
		return
	}

	created, err := h.engine.CreateReminder(r.Context(), callerID, rem)
	if err != nil {
		respondError(w, logger, "failed to create reminder", err)
		return
	}
	httputil.RespondJSON(w, created, http.StatusOK)
}

// GetReminder returns a reminder
// @Summary      Get a reminder
// @Tags         reminders
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        reminderId query string true "Reminder ID"
// @Success      200 {object} Reminder
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /reminder [get]
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := requireQuery(w, r, "reminderId")
	if !ok {
		return
	}

	rem, err := h.engine.GetReminder(r.Context(), callerID, id)
	if err != nil {
		respondError(w, logger, "failed to get reminder", err)
		return
	}
	httputil.RespondJSON(w, rem, http.StatusOK)
}

// UpdateReminder replaces a reminder
// @Summary      Update a reminder
// @Tags         reminders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        request body Reminder true "Reminder"
// @Success      200 {object} Reminder
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /reminder [put]
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}

	var rem Reminder
	if err := httputil.DecodeJSON(r, &rem); err != nil {
		respondError(w, logger, "invalid reminder request", err)
		return
	}

	updated, err := h.engine.UpdateReminder(r.Context(), callerID, rem)
	if err != nil {
		respondError(w, logger, "failed to update reminder", err)
		return
	}
	httputil.RespondJSON(w, updated, http.StatusOK)
}

// DeleteReminder deletes a reminder
// @Summary      Delete a reminder
// @Tags         reminders
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        reminderId query string true "Reminder ID"
// @Success      200
// @Failure      403 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /reminder [delete]
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	callerID, logger, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := requireQuery(w, r, "reminderId")
	if !ok {
		return
	}

	if err := h.engine.DeleteReminder(r.Context(), callerID, id); err != nil {
		respondError(w, logger, "failed to delete reminder", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, *logging.Logger, bool) {
	logger := logging.GetLoggerFromContext(r.Context())
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.UserID == "" {
		httputil.RespondAppError(w, apperr.Unauthorized("not authenticated"))
		return "", logger, false
	}
	return principal.UserID, logger, true
}

// readEventForm parses a multipart event request: the JSON part named
// field is decoded into dst and the photo parts are buffered.
func (h *Handler) readEventForm(w http.ResponseWriter, r *http.Request, field string, dst any) ([]Photo, error) {
	cfg := h.engine.Config()
	r.Body = http.MaxBytesReader(w, r.Body, int64(cfg.MaxPhotos+2)*cfg.MaxPhotoSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperr.PayloadTooLarge("the request body is too large")
		}
		return nil, apperr.Validation("invalid multipart body").WithCause(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	photos, err := BufferPhotos(r.Context(), PhotoFiles(r.MultipartForm), cfg.MaxPhotoSize)
	if err != nil {
		return nil, err
	}

	raw, err := formPart(r.MultipartForm, field)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, apperr.Validation(fmt.Sprintf(
			"the %s body has invalid/unknown fields, please compare yours with the docs", field)).WithCause(err)
	}
	return photos, nil
}

// formPart returns the named part whether it was sent as a form value or a file.
func formPart(form *multipart.Form, field string) ([]byte, error) {
	if values := form.Value[field]; len(values) > 0 {
		return []byte(values[0]), nil
	}
	if files := form.File[field]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return nil, apperr.Validation("failed to read event data").WithCause(err)
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, multipartOverhead))
		if err != nil {
			return nil, apperr.Validation("failed to read event data").WithCause(err)
		}
		return data, nil
	}
	return nil, apperr.Validation("no event data attached")
}

func requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		httputil.RespondAppError(w, apperr.Validation(fmt.Sprintf("missing %s parameter", name)))
		return "", false
	}
	return v, true
}

func respondError(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error(msg+": internal error", "error", err.Error())
	} else {
		logger.Warn(msg, "error", err.Error())
	}
	httputil.RespondAppError(w, err)
}
