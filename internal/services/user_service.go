package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist or is
	// outside the actor's scope.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrLastAdmin protects the system from losing its only administrator,
	// and a company from losing its only one.
	ErrLastAdmin = apperrors.New("LAST_ADMIN", "Cannot remove the last active administrator", http.StatusConflict)
	// ErrSelfDelete stops an account from deleting itself.
	ErrSelfDelete = apperrors.New("SELF_DELETE", "You cannot delete your own account", http.StatusBadRequest)
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Name      string
	Email     string
	Password  string
	IsAdmin   bool
	CompanyID *string
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	IsAdmin  *bool
	Active   *bool
}

// ListUsersOptions controls filtering and pagination for user listing.
type ListUsersOptions struct {
	Page      int
	PageSize  int
	Query     string
	Active    *bool
	CompanyID *string
}

// UserService manages the account lifecycle within tenant boundaries.
type UserService struct {
	db    *gorm.DB
	store *TokenRevoker
}

// TokenRevoker invalidates stored refresh tokens when an account changes in
// a way that must end its sessions.
type TokenRevoker struct {
	Revoke func(ctx context.Context, userID string) error
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, revoker *TokenRevoker) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, store: revoker}, nil
}

// scoped returns a query filtered to the accounts the actor may see.
func (s *UserService) scoped(ctx context.Context, actor Actor) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if actor.IsSuperAdmin {
		return query
	}
	if actor.CompanyID == nil {
		// Users without a company only ever see themselves.
		return query.Where("id = ?", actor.UserID)
	}
	return query.Where("company_id = ?", *actor.CompanyID)
}

// List retrieves users visible to the actor with pagination.
func (s *UserService) List(ctx context.Context, actor Actor, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	if !actor.IsAdmin && !actor.IsSuperAdmin {
		return nil, 0, apperrors.ErrForbidden
	}

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.scoped(ctx, actor)
	if opts.Active != nil {
		query = query.Where("active = ?", *opts.Active)
	}
	if opts.CompanyID != nil && actor.IsSuperAdmin {
		query = query.Where("company_id = ?", *opts.CompanyID)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Preload("Teams").
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// GetByID loads a user the actor is allowed to see. Accounts outside the
// actor's scope report not found rather than forbidden.
func (s *UserService) GetByID(ctx context.Context, actor Actor, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Preload("Teams").Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}

	if user.ID == actor.UserID {
		return &user, nil
	}
	if actor.IsSuperAdmin {
		return &user, nil
	}
	if actor.IsAdmin && user.CompanyID != nil && actor.CompanyID != nil && *user.CompanyID == *actor.CompanyID {
		return &user, nil
	}

	return nil, ErrUserNotFound
}

// Create provisions a new user inside the actor's scope. Company admins
// always create users in their own company; only super admins choose one.
func (s *UserService) Create(ctx context.Context, actor Actor, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if !actor.IsAdmin && !actor.IsSuperAdmin {
		return nil, apperrors.ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	email := normaliseEmail(input.Email)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	companyID := input.CompanyID
	if !actor.IsSuperAdmin {
		companyID = actor.CompanyID
	}
	if companyID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Company{}).
			Where("id = ?", *companyID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("user service: check company: %w", err)
		}
		if count == 0 {
			return nil, ErrCompanyNotFound
		}
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Name:      name,
		Email:     email,
		Password:  hashed,
		IsAdmin:   input.IsAdmin,
		Active:    true,
		CompanyID: companyID,
	}

	if err := createUserWithSlug(ctx, s.db, user); err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("email already registered")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	return user, nil
}

// Update persists mutable attributes for a user in the actor's scope.
func (s *UserService) Update(ctx context.Context, actor Actor, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	selfUpdate := user.ID == actor.UserID
	managesUser := actor.IsSuperAdmin ||
		(actor.IsAdmin && user.CompanyID != nil && actor.CompanyID != nil && *user.CompanyID == *actor.CompanyID)

	if !selfUpdate && !managesUser {
		return nil, ErrUserNotFound
	}

	updates := map[string]any{}

	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != user.Name {
			updates["name"] = name
		}
	}
	if input.Email != nil {
		if email := normaliseEmail(*input.Email); email != "" && email != user.Email {
			updates["email"] = email
		}
	}
	if input.Password != nil && strings.TrimSpace(*input.Password) != "" {
		hashed, hashErr := crypto.HashPassword(*input.Password)
		if hashErr != nil {
			return nil, fmt.Errorf("user service: hash password: %w", hashErr)
		}
		updates["password"] = hashed
	}

	// Role and activation changes are management operations.
	if input.IsAdmin != nil && *input.IsAdmin != user.IsAdmin {
		if !managesUser {
			return nil, apperrors.ErrForbidden
		}
		if !*input.IsAdmin && user.IsAdmin {
			demoted, demoteErr := s.demoteAdmin(ctx, user)
			if demoteErr != nil {
				return nil, demoteErr
			}
			if !demoted {
				return nil, ErrLastAdmin
			}
		} else {
			updates["is_admin"] = *input.IsAdmin
		}
	}
	if input.Active != nil && *input.Active != user.Active {
		if !managesUser {
			return nil, apperrors.ErrForbidden
		}
		updates["active"] = *input.Active
		if !*input.Active {
			s.revokeTokens(ctx, user.ID)
		}
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.NewConflict("email already registered")
			}
			return nil, fmt.Errorf("user service: update user: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).Preload("Teams").Take(user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("user service: reload user: %w", err)
	}

	return user, nil
}

// demoteAdmin clears the admin flag only while another active admin remains
// in the user's company, or anywhere in the system for an admin without a
// company. The guard lives in the UPDATE itself, so two concurrent demotions
// cannot strip the last admin.
func (s *UserService) demoteAdmin(ctx context.Context, user *models.User) (bool, error) {
	var result *gorm.DB
	if user.CompanyID != nil {
		result = s.db.WithContext(ctx).Exec(`
			UPDATE users SET is_admin = ? WHERE id = ? AND is_admin = ? AND EXISTS (
				SELECT 1 FROM users other
				WHERE other.company_id = users.company_id
				  AND other.is_admin = ?
				  AND other.active = ?
				  AND other.id <> users.id
			)`, false, user.ID, true, true, true)
	} else {
		result = s.db.WithContext(ctx).Exec(`
			UPDATE users SET is_admin = ? WHERE id = ? AND is_admin = ? AND EXISTS (
				SELECT 1 FROM users other
				WHERE other.is_admin = ?
				  AND other.active = ?
				  AND other.id <> users.id
			)`, false, user.ID, true, true, true)
	}
	if result.Error != nil {
		return false, fmt.Errorf("user service: demote admin: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete removes a user in the actor's scope. Deleting the last active
// admin, of a company or of the whole system, is refused atomically.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)

	if id == actor.UserID {
		return ErrSelfDelete
	}

	user, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return err
	}

	managesUser := actor.IsSuperAdmin ||
		(actor.IsAdmin && user.CompanyID != nil && actor.CompanyID != nil && *user.CompanyID == *actor.CompanyID)
	if !managesUser {
		return ErrUserNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserTeam{}).Error; err != nil {
			return fmt.Errorf("user service: clear team memberships: %w", err)
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return fmt.Errorf("user service: clear refresh tokens: %w", err)
		}

		if user.IsAdmin {
			// The delete carries its own last-admin guard so concurrent
			// deletes of two admins cannot both succeed. Admins without a
			// company are measured against every admin in the system.
			var result *gorm.DB
			if user.CompanyID != nil {
				result = tx.Exec(`
					DELETE FROM users WHERE id = ? AND EXISTS (
						SELECT 1 FROM users other
						WHERE other.company_id = ?
						  AND other.is_admin = ?
						  AND other.active = ?
						  AND other.id <> ?
					)`, user.ID, *user.CompanyID, true, true, user.ID)
			} else {
				result = tx.Exec(`
					DELETE FROM users WHERE id = ? AND EXISTS (
						SELECT 1 FROM users other
						WHERE other.is_admin = ?
						  AND other.active = ?
						  AND other.id <> ?
					)`, user.ID, true, true, user.ID)
			}
			if result.Error != nil {
				return fmt.Errorf("user service: delete user: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrLastAdmin
			}
			return nil
		}

		if err := tx.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *UserService) revokeTokens(ctx context.Context, userID string) {
	if s.store == nil || s.store.Revoke == nil {
		return
	}
	_ = s.store.Revoke(ctx, userID)
}
