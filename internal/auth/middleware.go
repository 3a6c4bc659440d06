package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/httputil"
	"github.com/redmonkez12/agenda-api/internal/logging"
)

// APIKeyHeader carries the client API key on every request.
const APIKeyHeader = "X-Api-Key"

// Reasons reported when a JWT-protected request is rejected.
const (
	ReasonTokenMissing    = "Token is missing"
	ReasonTokenInvalid    = "Token is invalid or expired"
	ReasonAudienceInvalid = "Audience is invalid"
	ReasonUserIDInvalid   = "User ID is invalid / missing"
	ReasonAPIKeyMissing   = "API key is missing"
	ReasonAPIKeyInvalid   = "API key is invalid"
	ReasonTokenRevoked    = "Token has been revoked"
)

const (
	jwtRejectionPrefix = "Invalid or missing token or API key"
	apiKeyRejection    = "No valid API key provided"
	adminRejection     = "Invalid admin credentials"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const PrincipalContextKey ContextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
}

// ContextWithPrincipal returns ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext extracts the caller placed by RequireJWT.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}

// Gate authenticates requests with API keys, admin basic credentials and JWTs.
type Gate struct {
	keys          *KeyService
	ledger        RevocationLedger
	tokenConfig   TokenConfig
	adminUser     string
	adminPassword string
	now           func() time.Time
}

func NewGate(keys *KeyService, ledger RevocationLedger, tokenConfig TokenConfig, adminUser, adminPassword string) *Gate {
	return &Gate{
		keys:          keys,
		ledger:        ledger,
		tokenConfig:   tokenConfig,
		adminUser:     adminUser,
		adminPassword: adminPassword,
		now:           time.Now,
	}
}

// RequireAPIKey admits requests carrying a valid X-Api-Key header.
func (g *Gate) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		valid, err := g.keys.IsValidKey(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			logging.GetLoggerFromContext(r.Context()).Error("failed to check api key", "error", err)
			httputil.RespondAppError(w, err)
			return
		}
		if !valid {
			httputil.RespondErrorWithCode(w, apiKeyRejection, apperr.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits requests with the configured admin basic credentials.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !g.isAdmin(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin", charset="UTF-8"`)
			httputil.RespondErrorWithCode(w, adminRejection, apperr.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) isAdmin(user, pass string) bool {
	if g.adminUser == "" || g.adminPassword == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.adminPassword)) == 1
	return userOK && passOK
}

// RequireJWT admits requests whose bearer token and API key pass every
// check of CheckJWT and puts the caller's Principal in the context.
func (g *Gate) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		principal, reasons, err := g.CheckJWT(r.Context(), r.Header.Get("Authorization"), r.Header.Get(APIKeyHeader))
		if err != nil {
			logger.Error("failed to authenticate request", "error", err)
			httputil.RespondAppError(w, err)
			return
		}
		if len(reasons) > 0 {
			logger.Warn("request rejected", "reasons", reasons)
			httputil.RespondErrorWithCode(w, RejectionMessage(reasons), apperr.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), *principal)
		ctx = logging.WithLogger(ctx, logger.WithFields(map[string]any{"user_id": principal.UserID}))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RejectionMessage joins the failed checks into the client-facing message.
func RejectionMessage(reasons []string) string {
	return jwtRejectionPrefix + ", " + strings.Join(reasons, ", ")
}

// CheckJWT verifies the bearer token and API key. Every failed check is
// collected rather than stopping at the first one. A nil Principal comes
// with at least one reason; err is only set when a store lookup fails.
func (g *Gate) CheckJWT(ctx context.Context, authorization, apiKey string) (*Principal, []string, error) {
	var reasons []string
	var userID string

	token := BearerToken(authorization)
	if token == "" {
		reasons = append(reasons, ReasonTokenMissing)
	} else if claims, err := g.parse(token); err != nil {
		reasons = append(reasons, ReasonTokenInvalid)
	} else {
		if !g.audienceMatches(claims) {
			reasons = append(reasons, ReasonAudienceInvalid)
		}
		if id, ok := claims[UserIDClaim].(string); ok && strings.TrimSpace(id) != "" {
			userID = id
		} else {
			reasons = append(reasons, ReasonUserIDInvalid)
		}
	}

	if apiKey == "" {
		reasons = append(reasons, ReasonAPIKeyMissing)
	} else {
		valid, err := g.keys.IsValidKey(ctx, apiKey)
		if err != nil {
			return nil, nil, apperr.Internal("failed to check api key", err)
		}
		if !valid {
			reasons = append(reasons, ReasonAPIKeyInvalid)
		}
	}

	if token != "" {
		killed, err := g.ledger.IsKilled(ctx, token)
		if err != nil {
			return nil, nil, apperr.Internal("failed to check revocation", err)
		}
		if killed {
			reasons = append(reasons, ReasonTokenRevoked)
		}
	}

	if len(reasons) > 0 {
		return nil, reasons, nil
	}
	return &Principal{UserID: userID}, nil, nil
}

func (g *Gate) parse(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return g.tokenConfig.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.tokenConfig.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (g *Gate) audienceMatches(claims jwt.MapClaims) bool {
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	return slices.Contains(aud, g.tokenConfig.Audience)
}

const bearerPrefix = "Bearer "

// BearerToken returns the token of a "Bearer <token>" Authorization header
// value. Any other value yields "".
func BearerToken(header string) string {
	token, _ := cutBearer(header)
	return token
}

// cutBearer reports whether header carries the Bearer scheme followed by a
// space, and returns what follows it.
func cutBearer(header string) (string, bool) {
	header = strings.TrimLeft(header, " \t")
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(bearerPrefix):]), true
}
