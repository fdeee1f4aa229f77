package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/services"
	appErrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// AuthHandler exposes registration, login, and the refresh token flow.
type AuthHandler struct {
	service *services.AuthService
}

// NewAuthHandler constructs an AuthHandler backed by the given service.
func NewAuthHandler(service *services.AuthService) (*AuthHandler, error) {
	if service == nil {
		return nil, errors.New("auth handler: service is required")
	}
	return &AuthHandler{service: service}, nil
}

type registerRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=128"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.service.Register(requestContext(c), services.RegisterInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.service.Login(requestContext(c), services.LoginInput{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body refreshRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.service.Refresh(requestContext(c), body.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var body logoutRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.Logout(requestContext(c), body.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// DELETE /api/v1/auth/logout
//
// Revokes every refresh token belonging to the caller.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.service.LogoutAll(requestContext(c), actor.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// GET /api/v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok || claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var expiresAt *time.Time
	if claims.ExpiresAt != nil {
		expiry := claims.ExpiresAt.Time
		expiresAt = &expiry
	}

	response.Success(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":             claims.UserID,
			"email":          claims.Email,
			"is_admin":       claims.IsAdmin,
			"is_super_admin": claims.IsSuperAdmin,
			"company_id":     claims.CompanyID,
		},
		"token": gin.H{
			"valid":      true,
			"expires_at": expiresAt,
		},
	})
}
