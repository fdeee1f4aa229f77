package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// TeamHandler exposes team and membership management. Teams are not
// tenant-scoped; any admin may manage them.
type TeamHandler struct {
	service *services.TeamService
}

// NewTeamHandler constructs a TeamHandler backed by the given service.
func NewTeamHandler(service *services.TeamService) (*TeamHandler, error) {
	if service == nil {
		return nil, errors.New("team handler: service is required")
	}
	return &TeamHandler{service: service}, nil
}

type createTeamRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type updateTeamRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=member lead"`
}

// GET /api/v1/teams
func (h *TeamHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	teams, err := h.service.List(requestContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// GET /api/v1/teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	team, err := h.service.GetByID(requestContext(c), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// POST /api/v1/teams
func (h *TeamHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body createTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.service.Create(requestContext(c), actor, services.CreateTeamInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, team)
}

// PUT /api/v1/teams/:id
func (h *TeamHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var body updateTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.service.Update(requestContext(c), actor, id, services.UpdateTeamInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// DELETE /api/v1/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/v1/teams/:id/members
func (h *TeamHandler) Members(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	members, err := h.service.Members(requestContext(c), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// POST /api/v1/teams/:id/members
func (h *TeamHandler) AddMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var body addMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.AddMember(requestContext(c), actor, id, body.UserID, body.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"added": true})
}

// DELETE /api/v1/teams/:id/members/:userId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveMember(requestContext(c), actor, id, c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
