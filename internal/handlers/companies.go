package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/response"
)

// CompanyHandler exposes tenant management.
type CompanyHandler struct {
	service *services.CompanyService
}

// NewCompanyHandler constructs a CompanyHandler backed by the given service.
func NewCompanyHandler(service *services.CompanyService) (*CompanyHandler, error) {
	if service == nil {
		return nil, errors.New("company handler: service is required")
	}
	return &CompanyHandler{service: service}, nil
}

type createCompanyRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type updateCompanyRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

// GET /api/v1/companies
func (h *CompanyHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	opts := services.ListCompaniesOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Query:    c.Query("q"),
	}

	companies, total, err := h.service.List(requestContext(c), actor, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, companies, &response.Meta{
		Page:    opts.Page,
		PerPage: opts.PageSize,
		Total:   int(total),
	})
}

// GET /api/v1/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	company, err := h.service.GetByID(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// POST /api/v1/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body createCompanyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	company, err := h.service.Create(requestContext(c), actor, services.CreateCompanyInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, company)
}

// PUT /api/v1/companies/:id
func (h *CompanyHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body updateCompanyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	company, err := h.service.Update(requestContext(c), actor, c.Param("id"), services.UpdateCompanyInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// DELETE /api/v1/companies/:id
func (h *CompanyHandler) Delete(c *gin.Context) {
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
