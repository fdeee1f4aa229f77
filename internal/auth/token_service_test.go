package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, clock func() time.Time) *TokenService {
	t.Helper()

	svc, err := NewTokenService(TokenConfig{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "crewdeck",
		Audience:      "crewdeck-api",
		Clock:         clock,
	})
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceValidation(t *testing.T) {
	_, err := NewTokenService(TokenConfig{RefreshSecret: "r"})
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "a"})
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "same", RefreshSecret: "same"})
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, nil)

	companyID := "11111111-2222-3333-4444-555555555555"
	token, err := svc.SignAccessToken(AccessTokenInput{
		UserID:       "user-1",
		Email:        "user@example.com",
		IsAdmin:      true,
		CompanyID:    &companyID,
	})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "user@example.com", claims.Email)
	require.True(t, claims.IsAdmin)
	require.False(t, claims.IsSuperAdmin)
	require.NotNil(t, claims.CompanyID)
	require.Equal(t, companyID, *claims.CompanyID)
}

func TestAccessTokenExpiry(t *testing.T) {
	current := time.Now()
	svc := newTestTokenService(t, func() time.Time { return current })

	token, err := svc.SignAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = svc.VerifyAccessToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	svc := newTestTokenService(t, nil)

	access, err := svc.SignAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)
	refresh, err := svc.SignRefreshToken("user-1")
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(access)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsForeignIssuerAndSecret(t *testing.T) {
	svc := newTestTokenService(t, nil)

	other, err := NewTokenService(TokenConfig{
		Secret:        "other-access",
		RefreshSecret: "other-refresh",
		Issuer:        "crewdeck",
		Audience:      "crewdeck-api",
	})
	require.NoError(t, err)

	forged, err := other.SignAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(forged)
	require.ErrorIs(t, err, ErrTokenInvalid)

	wrongIssuer, err := NewTokenService(TokenConfig{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "someone-else",
		Audience:      "crewdeck-api",
	})
	require.NoError(t, err)

	token, err := wrongIssuer.SignAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t, nil)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.VerifyAccessToken(token)
		require.Error(t, err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	require.Equal(t, "abc.def.ghi", ExtractBearerToken("Bearer abc.def.ghi"))
	require.Equal(t, "abc.def.ghi", ExtractBearerToken("  bearer abc.def.ghi  "))
	require.Empty(t, ExtractBearerToken(""))
	require.Empty(t, ExtractBearerToken("Basic dXNlcjpwYXNz"))
	require.Empty(t, ExtractBearerToken("Bearer"))
}
