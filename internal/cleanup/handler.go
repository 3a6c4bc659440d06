package cleanup

import (
	"net/http"
	"time"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/httputil"
	"github.com/redmonkez12/agenda-api/internal/logging"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Request names the cutoff. Any RFC 3339 timestamp is accepted.
type Request struct {
	CleanUpBefore string `json:"cleanUpBefore"`
}

// Cleanup deletes old entries
// @Summary      Delete old entries
// @Description  Removes every record created before cleanUpBefore, plus the photos of removed events
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        request body Request true "Cutoff"
// @Success      200 {object} Result
// @Failure      400 {object} httputil.ErrorResponse "Invalid request format"
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req Request
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid cleanup request body", "error", err.Error())
		httputil.RespondAppError(w, apperr.Validation("invalid request format"))
		return
	}

	cutoff, err := time.Parse(time.RFC3339Nano, req.CleanUpBefore)
	if err != nil {
		logger.Warn("invalid cleanup cutoff", "value", req.CleanUpBefore)
		httputil.RespondAppError(w, apperr.Validation("invalid request format"))
		return
	}

	result, err := h.service.CleanupOldEntries(r.Context(), cutoff)
	if err != nil {
		logger.Error("cleanup failed", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}
	httputil.RespondJSON(w, result, http.StatusOK)
}
