package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
)

var (
	// ErrSessionUserNotFound indicates the user behind a session no longer exists.
	ErrSessionUserNotFound = errors.New("session: user not found")
	// ErrSessionUserInactive indicates the account has been deactivated.
	ErrSessionUserInactive = errors.New("session: user inactive")
)

// TokenPair represents an access token and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SessionBridge issues fresh token pairs for a user id. Every issuance
// re-reads the account row, so claims always reflect current roles and a
// deactivated user can never mint new tokens from an old refresh token.
type SessionBridge struct {
	db     *gorm.DB
	tokens *TokenService
	store  *RefreshTokenStore
}

// NewSessionBridge constructs a bridge between accounts and issued tokens.
func NewSessionBridge(db *gorm.DB, tokens *TokenService, store *RefreshTokenStore) (*SessionBridge, error) {
	if db == nil {
		return nil, errors.New("session bridge: db is required")
	}
	if tokens == nil {
		return nil, errors.New("session bridge: token service is required")
	}
	if store == nil {
		return nil, errors.New("session bridge: refresh store is required")
	}
	return &SessionBridge{db: db, tokens: tokens, store: store}, nil
}

// IssueForUser loads the user and returns a fresh token pair, persisting the
// refresh token digest. The previous refresh token is replaced atomically.
func (b *SessionBridge) IssueForUser(ctx context.Context, userID string) (TokenPair, *models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TokenPair{}, nil, ErrSessionUserNotFound
	}

	var user models.User
	err := b.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenPair{}, nil, ErrSessionUserNotFound
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session bridge: load user: %w", err)
	}

	if !user.Active {
		return TokenPair{}, nil, ErrSessionUserInactive
	}

	return b.IssueForAccount(ctx, &user)
}

// IssueForAccount mints a token pair for an already-loaded account row.
func (b *SessionBridge) IssueForAccount(ctx context.Context, user *models.User) (TokenPair, *models.User, error) {
	if user == nil {
		return TokenPair{}, nil, ErrSessionUserNotFound
	}
	if !user.Active {
		return TokenPair{}, nil, ErrSessionUserInactive
	}

	accessToken, err := b.tokens.SignAccessToken(AccessTokenInput{
		UserID:       user.ID,
		Email:        user.Email,
		IsAdmin:      user.IsAdmin,
		IsSuperAdmin: user.IsSuperAdmin,
		CompanyID:    user.CompanyID,
	})
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session bridge: sign access token: %w", err)
	}

	refreshToken, err := b.tokens.SignRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session bridge: sign refresh token: %w", err)
	}

	if err := b.store.Save(ctx, user.ID, refreshToken); err != nil {
		return TokenPair{}, nil, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(b.tokens.AccessTokenTTL().Seconds()),
	}, user, nil
}
