package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/database/testutil"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
)

const testPassword = "correct horse battery staple"

type testEnv struct {
	db     *gorm.DB
	tokens *auth.TokenService
	store  *auth.RefreshTokenStore
	bridge *auth.SessionBridge
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:        "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		Issuer:        "crewdeck",
		Audience:      "crewdeck-api",
	})
	require.NoError(t, err)

	store, err := auth.NewRefreshTokenStore(db, auth.RefreshStoreConfig{})
	require.NoError(t, err)

	bridge, err := auth.NewSessionBridge(db, tokens, store)
	require.NoError(t, err)

	return &testEnv{db: db, tokens: tokens, store: store, bridge: bridge}
}

func (e *testEnv) createCompany(t *testing.T, name string) *models.Company {
	t.Helper()

	company := &models.Company{Name: name}
	require.NoError(t, e.db.Create(company).Error)
	return company
}

type userSpec struct {
	name         string
	email        string
	companyID    *string
	isAdmin      bool
	isSuperAdmin bool
	inactive     bool
}

func (e *testEnv) createUser(t *testing.T, spec userSpec) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword(testPassword)
	require.NoError(t, err)

	user := &models.User{
		Name:         spec.name,
		Email:        spec.email,
		Password:     hashed,
		Active:       !spec.inactive,
		IsAdmin:      spec.isAdmin,
		IsSuperAdmin: spec.isSuperAdmin,
		CompanyID:    spec.companyID,
	}
	require.NoError(t, createUserWithSlug(context.Background(), e.db, user))
	return user
}

func actorFor(user *models.User) Actor {
	return Actor{
		UserID:       user.ID,
		Email:        user.Email,
		IsAdmin:      user.IsAdmin,
		IsSuperAdmin: user.IsSuperAdmin,
		CompanyID:    user.CompanyID,
	}
}
