package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/agenda-api/internal/agenda"
	"github.com/redmonkez12/agenda-api/internal/auth"
	"github.com/redmonkez12/agenda-api/internal/blob"
	"github.com/redmonkez12/agenda-api/internal/cleanup"
	"github.com/redmonkez12/agenda-api/internal/config"
	"github.com/redmonkez12/agenda-api/internal/health"
	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/user"
)

const (
	testAPIKey        = "RouterKey1234567"
	testAdminUser     = "admin"
	testAdminPassword = "s3cret"
)

type noopLimiter struct{}

func (noopLimiter) CheckIPRateLimitWithPurpose(context.Context, string, string) (bool, error) {
	return false, nil
}

func (noopLimiter) RecordIPRequestWithPurpose(context.Context, string, string) error {
	return nil
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	logger := logging.New(slog.DiscardHandler)
	tokenConfig := auth.TokenConfig{
		Issuer:    "agenda-api",
		Audience:  "agenda-clients",
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		ExpiresIn: time.Hour,
	}

	users := user.NewMemoryRepository()
	ledger := auth.NewMemoryLedger()
	keys := auth.NewKeyService(auth.NewMemoryAPIKeyRepository(), time.Now)
	_, err := keys.CreateKey(context.Background(), testAPIKey, "client@example.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	authService := auth.NewService(users, keys, ledger, auth.NewTokenService(), tokenConfig, logger)
	blobs := blob.NewMemoryStore()
	repos := agenda.NewMemoryRepositories()
	engine := agenda.NewEngine(repos, users, blobs, agenda.Config{}, logger)

	cleanupService := cleanup.NewService(repos.Events, blobs, logger,
		cleanup.Collection{Name: "killedToken", Sweeper: ledger},
		cleanup.Collection{Name: "user", Sweeper: users},
		cleanup.Collection{Name: "event", Sweeper: repos.Events},
		cleanup.Collection{Name: "task", Sweeper: repos.Tasks},
		cleanup.Collection{Name: "reminder", Sweeper: repos.Reminders},
		cleanup.Collection{Name: "attendee", Sweeper: repos.Attendees},
	)

	checker := health.NewChecker(time.Second)
	checker.Add("blob", func(context.Context) error { return nil })

	cfg := &config.Config{Server: config.ServerConfig{Env: "prod", TrustedOrigins: []string{"http://localhost:3000"}}}

	return NewRouter(cfg, Handlers{
		Auth:    auth.NewHandler(authService, noopLimiter{}, logger),
		Agenda:  agenda.NewHandler(engine, logger),
		Cleanup: cleanup.NewHandler(cleanupService),
		Health:  checker,
		Gate:    auth.NewGate(keys, ledger, tokenConfig, testAdminUser, testAdminPassword),
	}, logger)
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler) auth.LoginResult {
	t.Helper()
	keyOnly := map[string]string{auth.APIKeyHeader: testAPIKey}

	rec := serve(router, http.MethodPost, "/register",
		`{"fullName":"Jane Doe","email":"jane@example.com","password":"Sup3rSecretPass"}`, keyOnly)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, http.MethodPost, "/login",
		`{"email":"jane@example.com","password":"Sup3rSecretPass"}`, keyOnly)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/status", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAPIKeyRoutesRequireKey(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/register", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodPost, "/login", `{}`, map[string]string{auth.APIKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireBasicAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/cleanup", `{"cleanUpBefore":"2020-01-01T00:00:00Z"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/cleanup", strings.NewReader(`{"cleanUpBefore":"2020-01-01T00:00:00Z"}`))
	req.SetBasicAuth(testAdminUser, testAdminPassword)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignedInFlow(t *testing.T) {
	router := newTestRouter(t)
	session := login(t, router)

	headers := map[string]string{
		auth.APIKeyHeader: testAPIKey,
		"Authorization":   "Bearer " + session.AccessToken,
	}

	rec := serve(router, http.MethodGet, "/authenticate", "", headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	at := time.Now().UTC().Truncate(time.Hour).UnixMilli()
	rec = serve(router, http.MethodPost, "/task",
		`{"id":"task-1","title":"Write report","time":`+strconv.FormatInt(at, 10)+`,"remindAt":`+strconv.FormatInt(at, 10)+`}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, http.MethodGet, "/agenda?time="+strconv.FormatInt(at, 10), "", headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var day agenda.Agenda
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day.Tasks, 1)
	assert.Equal(t, "task-1", day.Tasks[0].ID)

	rec = serve(router, http.MethodGet, "/logout", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/authenticate", "", headers)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.ReasonTokenRevoked)
}

func TestJWTRoutesRejectMissingCredentials(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/fullAgenda", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.ReasonTokenMissing)
	assert.Contains(t, rec.Body.String(), auth.ReasonAPIKeyMissing)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/event", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, apiCSP, rec.Header().Get("Content-Security-Policy"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Equal(t, swaggerCSP, rec.Header().Get("Content-Security-Policy"))
}
