package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	"github.com/crewdeck/crewdeck/pkg/metrics"
)

var (
	// ErrRefreshTokenNotFound indicates no stored token matches the presented one.
	ErrRefreshTokenNotFound = errors.New("refresh store: token not found")
	// ErrRefreshTokenExpired signals the stored token is past its expiry.
	ErrRefreshTokenExpired = errors.New("refresh store: token expired")
)

// RefreshStoreConfig describes tunable behaviour for the RefreshTokenStore.
type RefreshStoreConfig struct {
	TTL   time.Duration
	Clock func() time.Time
}

// RefreshTokenStore persists one refresh token digest per user. Presented
// tokens are hashed before lookup, so the plaintext never touches the
// database and a leaked table cannot be replayed.
type RefreshTokenStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewRefreshTokenStore constructs a store backed by the provided database.
// The token table is self-provisioning: the constructor ensures it exists,
// so the store works against a database that never ran the full migrations.
func NewRefreshTokenStore(db *gorm.DB, cfg RefreshStoreConfig) (*RefreshTokenStore, error) {
	if db == nil {
		return nil, errors.New("refresh store: db is required")
	}

	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		return nil, fmt.Errorf("refresh store: ensure schema: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &RefreshTokenStore{db: db, ttl: ttl, now: clock}, nil
}

// Save stores the digest of a user's refresh token, replacing any previous
// one in a single upsert so a user never holds two live tokens.
func (s *RefreshTokenStore) Save(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("refresh store: user id is required")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("refresh store: token is required")
	}

	now := s.now()
	record := models.RefreshToken{
		UserID:    userID,
		TokenHash: crypto.TokenDigest(token),
		ExpiresAt: now.Add(s.ttl),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_hash", "expires_at", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("refresh store: save token: %w", err)
	}

	s.refreshGauge(ctx)
	return nil
}

// Find resolves a presented refresh token to its stored record. Expired
// rows are deleted on sight and reported as expired.
func (s *RefreshTokenStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrRefreshTokenNotFound
	}

	digest := crypto.TokenDigest(token)

	var record models.RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", digest).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh store: find token: %w", err)
	}

	if !record.ExpiresAt.After(s.now()) {
		// Conditional on the digest so a concurrent rotation is never clobbered.
		_ = s.db.WithContext(ctx).
			Where("user_id = ? AND token_hash = ?", record.UserID, digest).
			Delete(&models.RefreshToken{}).Error
		return nil, ErrRefreshTokenExpired
	}

	return &record, nil
}

// Delete removes the stored token matching the presented plaintext. The
// delete is conditional on the digest, so two racing logouts settle cleanly
// and a rotated token is never removed by a stale request.
func (s *RefreshTokenStore) Delete(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrRefreshTokenNotFound
	}

	result := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.TokenDigest(token)).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("refresh store: delete token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRefreshTokenNotFound
	}

	s.refreshGauge(ctx)
	return nil
}

// DeleteAllForUser removes the user's stored token, ending every session.
func (s *RefreshTokenStore) DeleteAllForUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("refresh store: user id is required")
	}

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("refresh store: delete user tokens: %w", err)
	}

	s.refreshGauge(ctx)
	return nil
}

// CleanupExpired removes expired token rows. Used by the maintenance sweeper.
func (s *RefreshTokenStore) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("refresh store: cleanup expired: %w", result.Error)
	}

	s.refreshGauge(ctx)
	return result.RowsAffected, nil
}

func (s *RefreshTokenStore) refreshGauge(ctx context.Context) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("expires_at >= ?", s.now()).
		Count(&count).Error; err != nil {
		return
	}
	metrics.ActiveRefreshTokens.Set(float64(count))
}
