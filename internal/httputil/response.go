package httputil

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/redmonkez12/agenda-api/internal/apperr"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondError sends a JSON error response with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Message: message}, statusCode)
}

// RespondErrorWithCode sends a JSON error response with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Message: message, Code: code}, statusCode)
}

// RespondAppError writes err using its classification. Unclassified errors
// become a generic 500 so internals never reach the client.
func RespondAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind == apperr.KindInternal {
		RespondErrorWithCode(w, "internal server error", apperr.CodeInternalError, http.StatusInternalServerError)
		return
	}
	RespondErrorWithCode(w, appErr.Message, appErr.Code, appErr.HTTPStatus())
}

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.New(apperr.KindValidation, apperr.CodeInvalidRequestBody, "invalid request body").WithCause(err)
	}
	return nil
}
