package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// InvitationHandler exposes the invitation lifecycle. Lookup and accept are
// public endpoints driven by the emailed token; everything else is scoped to
// company admins.
type InvitationHandler struct {
	service *services.InvitationService
}

// NewInvitationHandler constructs an InvitationHandler backed by the given service.
func NewInvitationHandler(service *services.InvitationService) (*InvitationHandler, error) {
	if service == nil {
		return nil, errors.New("invitation handler: service is required")
	}
	return &InvitationHandler{service: service}, nil
}

type createInvitationRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Role      string  `json:"role" validate:"omitempty,oneof=member admin"`
	CompanyID *string `json:"company_id"`
	TeamID    *uint   `json:"team_id"`
}

type acceptInvitationRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=128"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// POST /api/v1/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body createInvitationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.service.Create(requestContext(c), actor, services.CreateInvitationInput{
		Email:     body.Email,
		Role:      body.Role,
		CompanyID: body.CompanyID,
		TeamID:    body.TeamID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	// The raw token appears here once; the stored record only keeps a digest.
	response.Success(c, http.StatusCreated, gin.H{
		"invitation": created.Invitation,
		"token":      created.Token,
	})
}

// GET /api/v1/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var companyID *string
	if value := strings.TrimSpace(c.Query("company_id")); value != "" {
		companyID = &value
	}

	invitations, err := h.service.List(requestContext(c), actor, companyID, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// GET /api/v1/invitations/:id
func (h *InvitationHandler) GetByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	invitation, err := h.service.GetByID(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitation)
}

// GET /api/v1/invitations/accept/:token
//
// Public. The invitee previews the company and team they were invited to
// before creating an account.
func (h *InvitationHandler) Get(c *gin.Context) {
	invitation, err := h.service.GetByToken(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"email":      invitation.Email,
		"role":       invitation.Role,
		"status":     invitation.Status,
		"company":    invitation.Company,
		"team":       invitation.Team,
		"expires_at": invitation.ExpiresAt,
	})
}

// POST /api/v1/invitations/accept/:token
//
// Public. Consumes the invitation, creates the account, and signs it in.
func (h *InvitationHandler) Accept(c *gin.Context) {
	var body acceptInvitationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.service.Accept(requestContext(c), services.AcceptInvitationInput{
		Token:    c.Param("token"),
		Name:     body.Name,
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

// DELETE /api/v1/invitations/:id and POST /api/v1/invitations/:id/revoke
func (h *InvitationHandler) Revoke(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.service.Revoke(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
