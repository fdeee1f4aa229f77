package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

// ErrCompanyNotFound indicates the requested company does not exist.
var ErrCompanyNotFound = apperrors.New("COMPANY_NOT_FOUND", "Company not found", http.StatusNotFound)

// CreateCompanyInput describes the fields accepted when creating a company.
type CreateCompanyInput struct {
	Name        string
	Description string
}

// UpdateCompanyInput enumerates mutable company attributes.
type UpdateCompanyInput struct {
	Name        *string
	Description *string
}

// ListCompaniesOptions controls pagination for company listing.
type ListCompaniesOptions struct {
	Page     int
	PageSize int
	Query    string
}

// CompanyService manages tenants. All mutating operations are reserved for
// super admins; regular users may only read their own company.
type CompanyService struct {
	db *gorm.DB
}

// NewCompanyService constructs a CompanyService instance.
func NewCompanyService(db *gorm.DB) (*CompanyService, error) {
	if db == nil {
		return nil, errors.New("company service: db is required")
	}
	return &CompanyService{db: db}, nil
}

// List retrieves companies. Super admins see all; everyone else sees only
// their own company.
func (s *CompanyService) List(ctx context.Context, actor Actor, opts ListCompaniesOptions) ([]models.Company, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Company{})
	if !actor.IsSuperAdmin {
		if actor.CompanyID == nil {
			return []models.Company{}, 0, nil
		}
		query = query.Where("id = ?", *actor.CompanyID)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: count companies: %w", err)
	}

	var companies []models.Company
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&companies).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: list companies: %w", err)
	}

	return companies, total, nil
}

// GetByID loads a company visible to the actor.
func (s *CompanyService) GetByID(ctx context.Context, actor Actor, id string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	if !actor.CanAccessCompany(id) {
		return nil, ErrCompanyNotFound
	}

	var company models.Company
	err := s.db.WithContext(ctx).Take(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("company service: get company: %w", err)
	}
	return &company, nil
}

// Create provisions a new tenant. Super admin only.
func (s *CompanyService) Create(ctx context.Context, actor Actor, input CreateCompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)

	if !actor.IsSuperAdmin {
		return nil, apperrors.ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("company name is required")
	}

	company := &models.Company{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}

	if err := s.db.WithContext(ctx).Create(company).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("a company with this name already exists")
		}
		return nil, fmt.Errorf("company service: create company: %w", err)
	}

	return company, nil
}

// Update persists mutable attributes for a company. Super admin only.
func (s *CompanyService) Update(ctx context.Context, actor Actor, id string, input UpdateCompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)

	if !actor.IsSuperAdmin {
		return nil, apperrors.ErrForbidden
	}

	var company models.Company
	err := s.db.WithContext(ctx).Take(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("company service: load company: %w", err)
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != company.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if len(updates) == 0 {
		return &company, nil
	}

	if err := s.db.WithContext(ctx).Model(&company).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("a company with this name already exists")
		}
		return nil, fmt.Errorf("company service: update company: %w", err)
	}

	return &company, nil
}

// Delete removes a tenant. Its users survive but are detached from the
// company and stripped of admin rights; invitations go with it. Teams are
// cross-company and untouched. Everything happens in one transaction.
func (s *CompanyService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)

	if !actor.IsSuperAdmin {
		return apperrors.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company models.Company
		err := tx.Take(&company, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCompanyNotFound
		}
		if err != nil {
			return fmt.Errorf("company service: load company: %w", err)
		}

		if err := tx.Where("company_id = ?", company.ID).Delete(&models.Invitation{}).Error; err != nil {
			return fmt.Errorf("company service: delete invitations: %w", err)
		}

		if err := tx.Model(&models.User{}).
			Where("company_id = ?", company.ID).
			Updates(map[string]any{"company_id": nil, "is_admin": false}).Error; err != nil {
			return fmt.Errorf("company service: detach users: %w", err)
		}

		if err := tx.Delete(&models.Company{}, "id = ?", company.ID).Error; err != nil {
			return fmt.Errorf("company service: delete company: %w", err)
		}
		return nil
	})
}
