package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Fallback token lifetimes applied when configuration omits them.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token kinds embedded in claims so an access token can never be replayed
// as a refresh token or vice versa, even if the secrets were ever shared.
const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

var (
	// ErrTokenInvalid is returned for malformed, forged, or mismatched tokens.
	ErrTokenInvalid = errors.New("token: invalid")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token: expired")
)

// TokenConfig bundles the configuration required to build a TokenService.
// Access and refresh tokens are signed with independent secrets.
type TokenConfig struct {
	Secret          string
	RefreshSecret   string
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Clock           func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID       string  `json:"uid"`
	Email        string  `json:"email,omitempty"`
	IsAdmin      bool    `json:"adm,omitempty"`
	IsSuperAdmin bool    `json:"sadm,omitempty"`
	CompanyID    *string `json:"cid,omitempty"`
	TokenKind    string  `json:"kind"`
	jwt.RegisteredClaims
}

// AccessTokenInput holds the identity snapshot embedded in a new access token.
type AccessTokenInput struct {
	UserID       string
	Email        string
	IsAdmin      bool
	IsSuperAdmin bool
	CompanyID    *string
}

// TokenService issues and validates the signed tokens used by the API.
type TokenService struct {
	secret        []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService constructs a TokenService from the provided configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token service: secret must be provided")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("token service: refresh secret must be provided")
	}
	if cfg.Secret == cfg.RefreshSecret {
		return nil, errors.New("token service: access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret:        []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}, nil
}

// AccessTokenTTL exposes the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration { return s.accessTTL }

// RefreshTokenTTL exposes the configured refresh token lifetime.
func (s *TokenService) RefreshTokenTTL() time.Duration { return s.refreshTTL }

// SignAccessToken issues a signed JWT carrying the user's identity snapshot.
func (s *TokenService) SignAccessToken(input AccessTokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("token service: user id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:       input.UserID,
		Email:        input.Email,
		IsAdmin:      input.IsAdmin,
		IsSuperAdmin: input.IsSuperAdmin,
		CompanyID:    input.CompanyID,
		TokenKind:    tokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   input.UserID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token service: sign access token: %w", err)
	}
	return signed, nil
}

// SignRefreshToken issues a signed refresh JWT carrying only the subject.
func (s *TokenService) SignRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("token service: user id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:    userID,
		TokenKind: tokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique id ensures two tokens minted in the same second differ.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("token service: sign refresh token: %w", err)
	}
	return signed, nil
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// Returns the empty string when the header is absent or not a Bearer scheme.
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// VerifyAccessToken parses and validates an access token, returning its claims.
func (s *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.secret, tokenKindAccess)
}

// VerifyRefreshToken parses and validates a refresh token, returning its claims.
func (s *TokenService) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.refreshSecret, tokenKindRefresh)
}

func (s *TokenService) verify(tokenString string, secret []byte, kind string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parser := jwt.NewParser(opts...)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims.TokenKind != kind {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}
