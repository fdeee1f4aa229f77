package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/database/testutil"
	"github.com/crewdeck/crewdeck/internal/models"
)

func newTestBridge(t *testing.T, db *gorm.DB) (*SessionBridge, *TokenService, *RefreshTokenStore) {
	t.Helper()

	tokens := newTestTokenService(t, nil)
	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)

	bridge, err := NewSessionBridge(db, tokens, store)
	require.NoError(t, err)
	return bridge, tokens, store
}

func TestSessionBridgeIssuesPair(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	bridge, tokens, store := newTestBridge(t, db)

	company := &models.Company{Name: "Bridge Co"}
	require.NoError(t, db.Create(company).Error)

	user := &models.User{
		Name:      "Bridge User",
		Email:     "bridge@example.com",
		Password:  "hash",
		Slug:      "bridge-user",
		IsAdmin:   true,
		Active:    true,
		CompanyID: &company.ID,
	}
	require.NoError(t, db.Create(user).Error)

	ctx := context.Background()
	pair, issued, err := bridge.IssueForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, issued.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.EqualValues(t, tokens.AccessTokenTTL().Seconds(), pair.ExpiresIn)

	claims, err := tokens.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.True(t, claims.IsAdmin)
	require.NotNil(t, claims.CompanyID)
	require.Equal(t, company.ID, *claims.CompanyID)

	record, err := store.Find(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, record.UserID)
}

func TestSessionBridgeRejectsInactiveUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	bridge, _, _ := newTestBridge(t, db)

	user := &models.User{
		Name:     "Inactive",
		Email:    "inactive@example.com",
		Password: "hash",
		Slug:     "inactive",
		Active:   false,
	}
	require.NoError(t, db.Create(user).Error)

	_, _, err := bridge.IssueForUser(context.Background(), user.ID)
	require.ErrorIs(t, err, ErrSessionUserInactive)
}

func TestSessionBridgeRejectsUnknownUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	bridge, _, _ := newTestBridge(t, db)

	_, _, err := bridge.IssueForUser(context.Background(), "missing-id")
	require.ErrorIs(t, err, ErrSessionUserNotFound)

	_, _, err = bridge.IssueForUser(context.Background(), "  ")
	require.ErrorIs(t, err, ErrSessionUserNotFound)
}

func TestSessionBridgeReplacesRefreshToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	bridge, _, store := newTestBridge(t, db)

	user := &models.User{
		Name:     "Rotate",
		Email:    "rotate@example.com",
		Password: "hash",
		Slug:     "rotate",
		Active:   true,
	}
	require.NoError(t, db.Create(user).Error)

	ctx := context.Background()
	first, _, err := bridge.IssueForUser(ctx, user.ID)
	require.NoError(t, err)

	second, _, err := bridge.IssueForUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = store.Find(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenNotFound)

	record, err := store.Find(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, record.UserID)
}
