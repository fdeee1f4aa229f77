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

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrTeamNotEmpty refuses deletion of a team that still has members.
	ErrTeamNotEmpty = apperrors.New("TEAM_NOT_EMPTY", "Team still has members", http.StatusConflict)
	// ErrNotTeamMember indicates the user is not a member of the team.
	ErrNotTeamMember = apperrors.New("NOT_TEAM_MEMBER", "User is not a member of this team", http.StatusNotFound)
)

// CreateTeamInput describes the fields accepted when creating a team.
type CreateTeamInput struct {
	Name        string
	Description string
}

// UpdateTeamInput enumerates mutable team attributes.
type UpdateTeamInput struct {
	Name        *string
	Description *string
}

// TeamMember pairs a user with their role inside a team.
type TeamMember struct {
	User models.User `json:"user"`
	Role string      `json:"role"`
}

// TeamService manages teams and their memberships. Teams cut across
// companies: any admin may manage any team, and memberships are not
// restricted to a single tenant.
type TeamService struct {
	db *gorm.DB
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	return &TeamService{db: db}, nil
}

// load fetches a team by id.
func (s *TeamService) load(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).Take(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load team: %w", err)
	}
	return &team, nil
}

func (s *TeamService) requireManager(actor Actor) error {
	if !actor.IsAdmin && !actor.IsSuperAdmin {
		return apperrors.ErrForbidden
	}
	return nil
}

// List retrieves all teams ordered by name.
func (s *TeamService) List(ctx context.Context, actor Actor) ([]models.Team, error) {
	ctx = ensureContext(ctx)

	var teams []models.Team
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("team service: list teams: %w", err)
	}
	return teams, nil
}

// GetByID loads a team including its members.
func (s *TeamService) GetByID(ctx context.Context, actor Actor, id uint) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Users").Take(team, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("team service: load members: %w", err)
	}
	return team, nil
}

// Create provisions a team. Names are unique across the whole system.
func (s *TeamService) Create(ctx context.Context, actor Actor, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	if err := s.requireManager(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("team name is required")
	}

	team := &models.Team{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}

	if err := s.db.WithContext(ctx).Create(team).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("a team with this name already exists")
		}
		return nil, fmt.Errorf("team service: create team: %w", err)
	}

	return team, nil
}

// Update persists mutable attributes for a team.
func (s *TeamService) Update(ctx context.Context, actor Actor, id uint, input UpdateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	if err := s.requireManager(actor); err != nil {
		return nil, err
	}

	team, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != team.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if len(updates) == 0 {
		return team, nil
	}

	if err := s.db.WithContext(ctx).Model(team).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("a team with this name already exists")
		}
		return nil, fmt.Errorf("team service: update team: %w", err)
	}

	return team, nil
}

// Delete removes an empty team. The emptiness check lives inside the DELETE
// statement, so a membership added concurrently blocks the removal.
func (s *TeamService) Delete(ctx context.Context, actor Actor, id uint) error {
	ctx = ensureContext(ctx)

	if err := s.requireManager(actor); err != nil {
		return err
	}

	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Exec(`
		DELETE FROM teams WHERE id = ? AND NOT EXISTS (
			SELECT 1 FROM user_teams WHERE user_teams.team_id = teams.id
		)`, id)
	if result.Error != nil {
		return fmt.Errorf("team service: delete team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTeamNotEmpty
	}
	return nil
}

// Members lists the team's users together with their membership role.
func (s *TeamService) Members(ctx context.Context, actor Actor, id uint) ([]TeamMember, error) {
	ctx = ensureContext(ctx)

	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	var memberships []models.UserTeam
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", id).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("team service: load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []TeamMember{}, nil
	}

	userIDs := make([]string, 0, len(memberships))
	roles := make(map[string]string, len(memberships))
	for _, m := range memberships {
		userIDs = append(userIDs, m.UserID)
		roles[m.UserID] = m.Role
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("team service: load members: %w", err)
	}

	members := make([]TeamMember, 0, len(users))
	for _, user := range users {
		members = append(members, TeamMember{User: user, Role: roles[user.ID]})
	}
	return members, nil
}

// AddMember puts a user on the team with the given role. The user may belong
// to any company, or to none.
func (s *TeamService) AddMember(ctx context.Context, actor Actor, id uint, userID, role string) error {
	ctx = ensureContext(ctx)

	if err := s.requireManager(actor); err != nil {
		return err
	}

	team, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	role = strings.TrimSpace(role)
	if role == "" {
		role = models.TeamRoleMember
	}
	if role != models.TeamRoleMember && role != models.TeamRoleLead {
		return apperrors.NewBadRequest("role must be member or lead")
	}

	var user models.User
	err = s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("team service: load user: %w", err)
	}

	membership := models.UserTeam{UserID: user.ID, TeamID: team.ID, Role: role}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperrors.NewConflict("user is already a member of this team")
		}
		// User or team removed between the reads above and the insert.
		if isForeignKeyError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("team service: add member: %w", err)
	}
	return nil
}

// RemoveMember takes a user off the team.
func (s *TeamService) RemoveMember(ctx context.Context, actor Actor, id uint, userID string) error {
	ctx = ensureContext(ctx)

	if err := s.requireManager(actor); err != nil {
		return err
	}

	team, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", team.ID, strings.TrimSpace(userID)).
		Delete(&models.UserTeam{})
	if result.Error != nil {
		return fmt.Errorf("team service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotTeamMember
	}
	return nil
}
