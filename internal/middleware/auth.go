package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/crewdeck/crewdeck/internal/auth"
	appErrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// Auth enforces JWT authentication using the supplied token service. A
// missing Authorization header and a bad token produce distinct error codes
// so clients can tell "log in" apart from "log in again".
func Auth(tokens *iauth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := strings.TrimSpace(c.GetHeader("Authorization"))
		if authz == "" {
			response.Error(c, appErrors.ErrMissingAuthHeader)
			c.Abort()
			return
		}

		token := iauth.ExtractBearerToken(authz)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, appErrors.ErrInvalidToken)
			c.Abort()
			return
		}

		claims, err := tokens.VerifyAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, appErrors.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)

		c.Next()
	}
}

// CurrentClaims returns the verified claims stored by Auth, if any.
func CurrentClaims(c *gin.Context) (*iauth.Claims, bool) {
	value, exists := c.Get(CtxClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*iauth.Claims)
	return claims, ok
}

// RequireAdmin allows company admins and super admins through.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !claims.IsAdmin && !claims.IsSuperAdmin {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireSuperAdmin allows only super admins through.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !claims.IsSuperAdmin {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
