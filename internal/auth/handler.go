package auth

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/httputil"
	"github.com/redmonkez12/agenda-api/internal/logging"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter RateLimiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccessTokenRequest asks for a new access token
type AccessTokenRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

// KillTokenRequest names the access token to revoke
type KillTokenRequest struct {
	AccessToken string `json:"accessToken"`
}

// APIKeyRequest asks for a new API key
type APIKeyRequest struct {
	Email     string     `json:"email"`
	ValidFrom *time.Time `json:"validFrom"`
}

// APIKeyResponse carries a newly issued API key
type APIKeyResponse struct {
	APIKey    string    `json:"apiKey"`
	ValidFrom time.Time `json:"validFrom"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account. Validation failures and duplicate emails return 409.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body RegisterRequest true "Registration data"
// @Success      200 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid API key"
// @Failure      409 {object} httputil.ErrorResponse "Validation error or email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "register") {
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		h.respondServiceError(w, logger, "registration failed", err)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	httputil.RespondJSON(w, RegisterResponse{
		UserID:   newUser.ID,
		Email:    newUser.Email,
		FullName: newUser.FullName,
	}, http.StatusOK)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive an access token and the refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResult
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "login") {
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, logger, "login failed", err)
		return
	}

	logger.Info("user logged in successfully", "user_id", result.UserID)

	httputil.RespondJSON(w, result, http.StatusOK)
}

// Authenticate confirms that the caller's token and API key are accepted
// @Summary      Check authentication
// @Description  Returns 200 when the bearer token and API key pass every check
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Success      200 {object} MessageResponse
// @Failure      401 {object} httputil.ErrorResponse "Rejected with the list of failed checks"
// @Router       /authenticate [get]
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, MessageResponse{Message: "Authenticated"}, http.StatusOK)
}

// AccessToken handles access token refresh
// @Summary      Refresh access token
// @Description  Exchange a user id and its refresh token for a new access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body AccessTokenRequest true "User id and refresh token"
// @Success      200 {object} AccessToken
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid user id or refresh token"
// @Router       /accessToken [post]
func (h *Handler) AccessToken(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req AccessTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid access token request body", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	token, err := h.service.RefreshAccessToken(r.Context(), req.UserID, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		h.respondServiceError(w, logger.WithFields(map[string]any{"user_id": req.UserID}), "token refresh failed", err)
		return
	}

	logger.Info("access token refreshed", "user_id", req.UserID)

	httputil.RespondJSON(w, token, http.StatusOK)
}

// KillToken revokes an access token
// @Summary      Kill an access token
// @Description  Add an access token to the revocation ledger
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body KillTokenRequest true "Access token"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Router       /killToken [post]
func (h *Handler) KillToken(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req KillTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid kill token request body", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	if err := h.service.KillToken(r.Context(), req.AccessToken); err != nil {
		h.respondServiceError(w, logger, "kill token failed", err)
		return
	}

	logger.Info("access token killed")

	httputil.RespondJSON(w, MessageResponse{Message: "Token killed"}, http.StatusOK)
}

// Logout revokes the caller's own access token
// @Summary      User logout
// @Description  Add the bearer token of the request to the revocation ledger
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Success      200 {object} MessageResponse
// @Failure      401 {object} httputil.ErrorResponse "Rejected with the list of failed checks"
// @Router       /logout [get]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if err := h.service.KillToken(r.Context(), r.Header.Get("Authorization")); err != nil {
		h.respondServiceError(w, logger, "logout failed", err)
		return
	}

	logger.Info("user logged out")

	httputil.RespondJSON(w, MessageResponse{Message: "Logged out"}, http.StatusOK)
}

// CreateAPIKey issues an API key
// @Summary      Issue an API key
// @Description  Create or replace the API key of an email. Valid for twelve months.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        request body APIKeyRequest true "Owner email and start of validity"
// @Success      200 {object} APIKeyResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request"
// @Failure      401 {object} httputil.ErrorResponse "Invalid admin credentials"
// @Router       /apiKey [post]
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req APIKeyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid api key request body", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	var validFrom time.Time
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}

	key, err := h.service.CreateAPIKey(r.Context(), req.Email, validFrom)
	if err != nil {
		h.respondServiceError(w, logger.WithFields(map[string]any{"email": req.Email}), "api key creation failed", err)
		return
	}

	logger.Info("api key issued", "email", key.Email)

	httputil.RespondJSON(w, APIKeyResponse{
		APIKey:    key.Key,
		ValidFrom: key.ValidFrom,
		ExpiresAt: key.ExpiresAt,
	}, http.StatusOK)
}

// allow applies the per-IP limit for purpose. A limiter failure lets the
// request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondAppError(w, apperr.TooManyRequests("too many requests, please try again later"))
		return false
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error(msg+": internal error", "error", err.Error())
	} else {
		logger.Warn(msg, "error", err.Error())
	}
	httputil.RespondAppError(w, err)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (behind proxy/load balancer)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
