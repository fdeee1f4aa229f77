package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/database/testutil"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
)

func createStoreUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Name:     "Store User",
		Email:    email,
		Password: "hash",
		Slug:     email,
		Active:   true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRefreshStoreProvisionsOwnTable(t *testing.T) {
	// No migrations: the constructor must create the token table itself.
	db := testutil.MustOpenTestDB(t)

	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "user-1", "self-provisioned"))

	record, err := store.Find(ctx, "self-provisioned")
	require.NoError(t, err)
	require.Equal(t, "user-1", record.UserID)

	// Constructing a second store over the same database is a no-op.
	_, err = NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)
}

func TestRefreshStoreSaveHashesToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := createStoreUser(t, db, "hash@example.com")

	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), user.ID, "raw-refresh-token"))

	var record models.RefreshToken
	require.NoError(t, db.Take(&record, "user_id = ?", user.ID).Error)
	require.NotEqual(t, "raw-refresh-token", record.TokenHash)
	require.Equal(t, crypto.TokenDigest("raw-refresh-token"), record.TokenHash)
}

func TestRefreshStoreSaveReplacesPreviousToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := createStoreUser(t, db, "replace@example.com")

	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, user.ID, "first-token"))
	require.NoError(t, store.Save(ctx, user.ID, "second-token"))

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = store.Find(ctx, "first-token")
	require.ErrorIs(t, err, ErrRefreshTokenNotFound)

	record, err := store.Find(ctx, "second-token")
	require.NoError(t, err)
	require.Equal(t, user.ID, record.UserID)
}

func TestRefreshStoreFindExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := createStoreUser(t, db, "expired@example.com")

	current := time.Now()
	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{
		TTL:   time.Hour,
		Clock: func() time.Time { return current },
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, user.ID, "short-lived"))

	current = current.Add(2 * time.Hour)
	_, err = store.Find(ctx, "short-lived")
	require.ErrorIs(t, err, ErrRefreshTokenExpired)

	// The expired row is removed on sight.
	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestRefreshStoreDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := createStoreUser(t, db, "delete@example.com")

	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, user.ID, "deletable"))
	require.NoError(t, store.Delete(ctx, "deletable"))

	// A second delete of the same token reports not found.
	require.ErrorIs(t, store.Delete(ctx, "deletable"), ErrRefreshTokenNotFound)
}

func TestRefreshStoreDeleteAllForUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	first := createStoreUser(t, db, "all-one@example.com")
	second := createStoreUser(t, db, "all-two@example.com")

	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, first.ID, "token-one"))
	require.NoError(t, store.Save(ctx, second.ID, "token-two"))

	require.NoError(t, store.DeleteAllForUser(ctx, first.ID))

	_, err = store.Find(ctx, "token-one")
	require.ErrorIs(t, err, ErrRefreshTokenNotFound)

	// Other users' tokens are untouched.
	record, err := store.Find(ctx, "token-two")
	require.NoError(t, err)
	require.Equal(t, second.ID, record.UserID)
}

func TestRefreshStoreCleanupExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	fresh := createStoreUser(t, db, "cleanup-fresh@example.com")
	stale := createStoreUser(t, db, "cleanup-stale@example.com")

	current := time.Now()
	store, err := NewRefreshTokenStore(db, RefreshStoreConfig{
		TTL:   time.Hour,
		Clock: func() time.Time { return current },
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, stale.ID, "stale-token"))

	current = current.Add(30 * time.Minute)
	require.NoError(t, store.Save(ctx, fresh.ID, "fresh-token"))

	current = current.Add(45 * time.Minute)
	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	record, err := store.Find(ctx, "fresh-token")
	require.NoError(t, err)
	require.Equal(t, fresh.ID, record.UserID)
}
