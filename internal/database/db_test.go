package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/models"
)

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{"users", "companies", "teams", "user_teams", "invitations", "refresh_tokens", "cache_entries"} {
		require.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestSeedDataCreatesBootstrapAdmin(t *testing.T) {
	t.Setenv("CREWDECK_ADMIN_PASSWORD", "bootstrap-secret")
	t.Setenv("CREWDECK_ADMIN_EMAIL", "Root@Example.com")

	db, err := Open(Config{Driver: "sqlite", DSN: "file:seed_admin_test?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndSeed(db))

	var admin models.User
	require.NoError(t, db.Where("is_super_admin = ?", true).First(&admin).Error)
	require.Equal(t, "root@example.com", admin.Email)
	require.True(t, admin.IsAdmin)
	require.NotEqual(t, "bootstrap-secret", admin.Password)

	// Seeding again must not create a second super admin.
	require.NoError(t, SeedData(db))
	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("is_super_admin = ?", true).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSeedDataSkipsWithoutPassword(t *testing.T) {
	t.Setenv("CREWDECK_ADMIN_PASSWORD", "")

	db, err := Open(Config{Driver: "sqlite", DSN: "file:seed_skip_test?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndSeed(db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}
