package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/agenda-api/internal/apperr"
	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/user"
)

const refreshTokenLength = 128

var (
	errInvalidCredentials = apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidCredentials, "Invalid email or password")
	errInvalidRefresh     = apperr.New(apperr.KindUnauthorized, apperr.CodeUnauthorized, "Invalid user id or refresh token")
)

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// LoginResult is returned to a client after a successful login.
type LoginResult struct {
	AccessToken                    string `json:"accessToken"`
	RefreshToken                   string `json:"refreshToken"`
	UserID                         string `json:"userId"`
	FullName                       string `json:"fullName"`
	AccessTokenExpirationTimestamp int64  `json:"accessTokenExpirationTimestamp"`
}

// AccessToken is a freshly issued access token.
type AccessToken struct {
	AccessToken         string `json:"accessToken"`
	ExpirationTimestamp int64  `json:"expirationTimestamp"`
}

// Service handles authentication business logic
type Service struct {
	users       user.Repository
	keys        *KeyService
	ledger      RevocationLedger
	tokens      *TokenService
	tokenConfig TokenConfig
	logger      *logging.Logger
	now         func() time.Time
}

func NewService(
	users user.Repository,
	keys *KeyService,
	ledger RevocationLedger,
	tokens *TokenService,
	tokenConfig TokenConfig,
	logger *logging.Logger,
) *Service {
	return &Service{
		users:       users,
		keys:        keys,
		ledger:      ledger,
		tokens:      tokens,
		tokenConfig: tokenConfig,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates a new account. Validation failures and duplicate emails
// are both reported as conflicts.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	email := normalizeEmail(in.Email)

	if msg := validateRegistration(in.FullName, email, in.Password); msg != "" {
		return nil, apperr.New(apperr.KindConflict, apperr.CodeValidationError, msg)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.New(apperr.KindConflict, apperr.CodeEmailExists, "User with this email already exists")
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, salt, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	refreshToken, err := randomString(refreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	newUser := &user.User{
		ID:             uuid.NewString(),
		Email:          email,
		FullName:       in.FullName,
		HashedPassword: hash,
		Salt:           salt,
		RefreshToken:   refreshToken,
		CreatedAt:      s.now(),
	}

	if err := s.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, apperr.New(apperr.KindConflict, apperr.CodeEmailExists, "User with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// Login checks credentials and issues an access token. The refresh token
// returned is the one generated at registration.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !verifyPassword(existing.HashedPassword, existing.Salt, password) {
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := s.issueAccessToken(existing.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:                    token,
		RefreshToken:                   existing.RefreshToken,
		UserID:                         existing.ID,
		FullName:                       existing.FullName,
		AccessTokenExpirationTimestamp: expiresAt.UnixMilli(),
	}, nil
}

// RefreshAccessToken issues a new access token when refreshToken matches
// the one stored for userID.
func (s *Service) RefreshAccessToken(ctx context.Context, userID, refreshToken string) (*AccessToken, error) {
	if userID == "" || refreshToken == "" {
		return nil, errInvalidRefresh
	}

	ok, err := s.users.CheckRefreshToken(ctx, userID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if !ok {
		return nil, errInvalidRefresh
	}

	token, expiresAt, err := s.issueAccessToken(userID)
	if err != nil {
		return nil, err
	}

	return &AccessToken{AccessToken: token, ExpirationTimestamp: expiresAt.UnixMilli()}, nil
}

// KillToken adds an access token to the revocation ledger. token is either
// the bare token or an Authorization header value.
func (s *Service) KillToken(ctx context.Context, token string) error {
	if bearer, ok := cutBearer(token); ok {
		token = bearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("Access token is required")
	}

	if err := s.ledger.Kill(ctx, token); err != nil {
		return fmt.Errorf("failed to kill token: %w", err)
	}
	return nil
}

// CreateAPIKey issues a new API key for email, replacing any previous one.
func (s *Service) CreateAPIKey(ctx context.Context, email string, validFrom time.Time) (*APIKey, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, apperr.Validation("Invalid email")
	}
	if validFrom.IsZero() {
		validFrom = s.now()
	}

	return s.keys.IssueKey(ctx, email, validFrom)
}

func (s *Service) issueAccessToken(userID string) (string, time.Time, error) {
	token, expiresAt, err := s.tokens.Generate(s.tokenConfig, TokenClaim{Name: UserIDClaim, Value: userID})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create access token: %w", err)
	}
	return token, expiresAt, nil
}
