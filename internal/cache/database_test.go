package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/database/testutil"
)

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Separate keys count independently.
	count, _, err = store.IncrementWithTTL(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreIncrementWindowDoesNotSlide(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	_, first, err := store.IncrementWithTTL(ctx, "fixed", time.Minute)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, second, err := store.IncrementWithTTL(ctx, "fixed", time.Minute)
	require.NoError(t, err)
	require.LessOrEqual(t, second, first)
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "greeting", []byte("hello"), time.Minute))

	value, found, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), value)

	// Overwrite through the upsert path.
	require.NoError(t, store.Set(ctx, "greeting", []byte("goodbye"), time.Minute))
	value, found, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("goodbye"), value)

	require.NoError(t, store.Delete(ctx, "greeting"))
	_, found, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "ephemeral")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreCleanupExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Millisecond))
	require.NoError(t, store.Set(ctx, "live", []byte("y"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("z"), 0))

	time.Sleep(5 * time.Millisecond)

	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, found, err := store.Get(ctx, "live")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, found)
}
