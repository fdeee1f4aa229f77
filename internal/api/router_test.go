package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/app"
	iauth "github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/database/testutil"
	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
)

type routerFixture struct {
	db     *gorm.DB
	router *gin.Engine
	cfg    *app.Config
}

func testConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "router-access-secret"
	cfg.Auth.JWT.RefreshSecret = "router-refresh-secret"
	cfg.Auth.JWT.Issuer = "crewdeck"
	cfg.Auth.JWT.Audience = "crewdeck-api"
	cfg.CORS.AllowedOrigins = []string{"https://app.crewdeck.test"}
	cfg.Monitoring.Health.Enabled = true
	return cfg
}

func newRouterFixture(t *testing.T, cfg *app.Config) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if cfg == nil {
		cfg = testConfig()
	}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	require.NoError(t, err)
	store, err := iauth.NewRefreshTokenStore(db, iauth.RefreshStoreConfig{})
	require.NoError(t, err)
	bridge, err := iauth.NewSessionBridge(db, tokens, store)
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		DB:           db,
		Config:       cfg,
		Tokens:       tokens,
		RefreshStore: store,
		Bridge:       bridge,
		RateStore:    middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &routerFixture{db: db, router: router, cfg: cfg}
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	body := decodeBody(t, rec)
	errInfo, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error payload, got %s", rec.Body.String())
	code, _ := errInfo["code"].(string)
	return code
}

func (f *routerFixture) seedUser(t *testing.T, name, email string, companyID *string, isAdmin, isSuper bool) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword("router test password")
	require.NoError(t, err)
	user := &models.User{
		Name:         name,
		Email:        email,
		Password:     hashed,
		Slug:         fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		Active:       true,
		IsAdmin:      isAdmin,
		IsSuperAdmin: isSuper,
		CompanyID:    companyID,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *routerFixture) login(t *testing.T, email string) (string, string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "router test password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	tokens := data["tokens"].(map[string]any)
	return tokens["access_token"].(string), tokens["refresh_token"].(string)
}

func TestRouterHealthAndNotFound(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/no/such/route", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestRouterRegisterLoginAndMe(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":             "Ada Lovelace",
		"email":            "ada@example.com",
		"password":         "router test password",
		"confirm_password": "something else entirely",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":             "Ada Lovelace",
		"email":            "ada@example.com",
		"password":         "router test password",
		"confirm_password": "router test password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	access, refresh := f.login(t, "ada@example.com")
	require.NotEmpty(t, refresh)

	rec = f.do(t, http.MethodGet, "/api/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "ada@example.com", data["email"])

	// Refresh rotates the pair.
	rec = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_INVALID", errorCode(t, rec))
}

func TestRouterAuthGates(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH_HEADER_MISSING", errorCode(t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/users", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_INVALID", errorCode(t, rec))

	// A plain user cannot list accounts or mint companies.
	f.seedUser(t, "plain", "plain@example.com", nil, false, false)
	access, _ := f.login(t, "plain@example.com")

	rec = f.do(t, http.MethodGet, "/api/v1/users", access, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/companies", access, gin.H{"name": "Rogue Corp"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterInvitationFlow(t *testing.T) {
	f := newRouterFixture(t, nil)

	company := &models.Company{Name: "Acme"}
	require.NoError(t, f.db.Create(company).Error)
	f.seedUser(t, "admin", "admin@acme.test", &company.ID, true, false)

	access, _ := f.login(t, "admin@acme.test")

	rec := f.do(t, http.MethodPost, "/api/v1/invitations", access, gin.H{"email": "invitee@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	token := data["token"].(string)
	require.NotEmpty(t, token)
	invitation := data["invitation"].(map[string]any)
	invitationID := invitation["id"].(string)

	// The inviting admin sees the record by id; the stored row never holds
	// the raw token.
	rec = f.do(t, http.MethodGet, "/api/v1/invitations/"+invitationID, access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), token)

	// The invitee previews the invitation without authenticating.
	rec = f.do(t, http.MethodGet, "/api/v1/invitations/accept/"+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/invitations/accept/"+token, "", gin.H{
		"name":             "New Colleague",
		"password":         "router test password",
		"confirm_password": "router test password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	accepted := decodeBody(t, rec)["data"].(map[string]any)
	tokens := accepted["tokens"].(map[string]any)

	rec = f.do(t, http.MethodGet, "/api/v1/users/me", tokens["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "invitee@example.com", me["email"])
	require.Equal(t, company.ID, me["company_id"])

	// A consumed token cannot be replayed.
	rec = f.do(t, http.MethodPost, "/api/v1/invitations/accept/"+token, "", gin.H{
		"name":             "Replayer",
		"password":         "router test password",
		"confirm_password": "router test password",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouterSuperAdminCompanyLifecycle(t *testing.T) {
	f := newRouterFixture(t, nil)

	f.seedUser(t, "root", "root@crewdeck.test", nil, false, true)
	access, _ := f.login(t, "root@crewdeck.test")

	rec := f.do(t, http.MethodPost, "/api/v1/companies", access, gin.H{"name": "Initech"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)["data"].(map[string]any)
	companyID := created["id"].(string)

	rec = f.do(t, http.MethodGet, "/api/v1/companies/"+companyID, access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/companies/"+companyID, access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/companies/"+companyID, access, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRateLimitResponses(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Limit = 2
	cfg.RateLimit.Window = time.Minute
	f := newRouterFixture(t, cfg)

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, rec))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRouterCORSDeniesUnknownOrigin(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.crewdeck.test")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://app.crewdeck.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
