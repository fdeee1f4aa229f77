package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// UserHandler exposes account management within tenant boundaries.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs a UserHandler backed by the given service.
func NewUserHandler(service *services.UserService) (*UserHandler, error) {
	if service == nil {
		return nil, errors.New("user handler: service is required")
	}
	return &UserHandler{service: service}, nil
}

type createUserRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=128"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	IsAdmin   bool    `json:"is_admin"`
	CompanyID *string `json:"company_id"`
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=128"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
	IsAdmin  *bool   `json:"is_admin"`
	Active   *bool   `json:"active"`
}

// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	opts := services.ListUsersOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Query:    c.Query("q"),
	}
	if active := strings.TrimSpace(c.Query("active")); active != "" {
		value := active == "true"
		opts.Active = &value
	}
	if companyID := strings.TrimSpace(c.Query("company_id")); companyID != "" {
		opts.CompanyID = &companyID
	}

	users, total, err := h.service.List(requestContext(c), actor, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, &response.Meta{
		Page:    opts.Page,
		PerPage: opts.PageSize,
		Total:   int(total),
	})
}

// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.service.GetByID(requestContext(c), actor, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.service.GetByID(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Create(requestContext(c), actor, services.CreateUserInput{
		Name:      body.Name,
		Email:     body.Email,
		Password:  body.Password,
		IsAdmin:   body.IsAdmin,
		CompanyID: body.CompanyID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	h.update(c, c.Param("id"))
}

// PUT /api/v1/users/me
//
// Self-service profile updates; role changes still go through the service's
// authorization rules.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	h.update(c, actor.UserID)
}

func (h *UserHandler) update(c *gin.Context, id string) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Update(requestContext(c), actor, id, services.UpdateUserInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		IsAdmin:  body.IsAdmin,
		Active:   body.Active,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
