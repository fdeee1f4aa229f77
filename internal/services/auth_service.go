package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/metrics"
)

// RegisterInput describes the fields accepted for self-registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries the credentials presented at login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult bundles the issued tokens with the authenticated user.
type AuthResult struct {
	Tokens auth.TokenPair
	User   *models.User
}

// AuthService implements registration, login, and the refresh token flow.
type AuthService struct {
	db     *gorm.DB
	tokens *auth.TokenService
	store  *auth.RefreshTokenStore
	bridge *auth.SessionBridge
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(db *gorm.DB, tokens *auth.TokenService, store *auth.RefreshTokenStore, bridge *auth.SessionBridge) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if store == nil {
		return nil, errors.New("auth service: refresh store is required")
	}
	if bridge == nil {
		return nil, errors.New("auth service: session bridge is required")
	}
	return &AuthService{db: db, tokens: tokens, store: store, bridge: bridge}, nil
}

// Register provisions a new account. Self-registered users belong to no
// company until they accept an invitation or an admin assigns one.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := normaliseEmail(input.Email)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Active:   true,
	}

	if err := createUserWithSlug(ctx, s.db, user); err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("email already registered")
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	pair, _, err := s.bridge.IssueForAccount(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{Tokens: pair, User: user}, nil
}

// Login verifies credentials and issues a fresh token pair. Failures are
// indistinguishable between unknown email and wrong password.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" || strings.TrimSpace(input.Password) == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.Active {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now()
	_ = s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error

	pair, _, err := s.bridge.IssueForAccount(ctx, &user)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{Tokens: pair, User: &user}, nil
}

// Refresh rotates a refresh token: the presented token must carry a valid
// signature and still match the stored digest. Claims are rebuilt from the
// current user row, never copied from the old token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	record, err := s.store.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenNotFound) || errors.Is(err, auth.ErrRefreshTokenExpired) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	if record.UserID != claims.UserID {
		return nil, apperrors.ErrInvalidToken
	}

	pair, user, err := s.bridge.IssueForUser(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrSessionUserNotFound) || errors.Is(err, auth.ErrSessionUserInactive) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	return &AuthResult{Tokens: pair, User: user}, nil
}

// Logout invalidates the presented refresh token. Unknown tokens succeed
// silently so logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	err := s.store.Delete(ctx, refreshToken)
	if err != nil && !errors.Is(err, auth.ErrRefreshTokenNotFound) {
		return err
	}
	return nil
}

// LogoutAll invalidates every refresh token belonging to the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.store.DeleteAllForUser(ensureContext(ctx), userID)
}

// createUserWithSlug inserts a user, deriving a unique slug from the name.
// On a slug collision the insert retries with a random suffix.
func createUserWithSlug(ctx context.Context, db *gorm.DB, user *models.User) error {
	base := slugify(user.Name)
	if base == "" {
		base = "user"
	}

	user.Slug = base
	err := db.WithContext(ctx).Create(user).Error
	if err == nil || !isUniqueConstraintError(err) {
		return err
	}

	// The email index may be the one that tripped; check before retrying.
	var count int64
	if countErr := db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", user.Email).
		Count(&count).Error; countErr == nil && count > 0 {
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		suffix, tokenErr := crypto.GenerateHexToken(3)
		if tokenErr != nil {
			return tokenErr
		}
		user.ID = ""
		user.Slug = base + "-" + suffix
		err = db.WithContext(ctx).Create(user).Error
		if err == nil || !isUniqueConstraintError(err) {
			return err
		}
	}
	return err
}
