package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/services"
	appErrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentActor builds the acting identity from the verified claims stored by
// the auth middleware. When no claims are present an unauthorized response is
// written and ok is false.
func currentActor(c *gin.Context) (services.Actor, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok || claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return services.Actor{}, false
	}
	return services.ActorFromClaims(claims), true
}
