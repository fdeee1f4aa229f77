package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
	"github.com/crewdeck/crewdeck/pkg/logger"
	"github.com/crewdeck/crewdeck/pkg/mail"
)

// DefaultInvitationTTL is how long an invitation stays valid.
const DefaultInvitationTTL = 7 * 24 * time.Hour

var (
	// ErrInvitationNotFound indicates the invitation does not exist in scope.
	ErrInvitationNotFound = apperrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)
	// ErrInvitationNotPending indicates the invitation already reached a
	// terminal state and cannot be used or revoked.
	ErrInvitationNotPending = apperrors.New("INVITATION_NOT_PENDING", "Invitation is no longer pending", http.StatusConflict)
	// ErrInvitationExpired indicates the invitation window has passed.
	ErrInvitationExpired = apperrors.New("INVITATION_EXPIRED", "Invitation has expired", http.StatusGone)
)

// CreateInvitationInput describes the fields accepted when inviting someone.
type CreateInvitationInput struct {
	Email     string
	Role      string
	CompanyID *string
	TeamID    *uint
}

// AcceptInvitationInput carries the account details the invitee registers with.
type AcceptInvitationInput struct {
	Token    string
	Name     string
	Password string
}

// CreatedInvitation pairs the stored invitation with the raw token. The raw
// token exists only in this return value and in the invite email.
type CreatedInvitation struct {
	Invitation *models.Invitation
	Token      string
}

// InvitationServiceConfig tunes invitation issuance.
type InvitationServiceConfig struct {
	TTL     time.Duration
	BaseURL string
	Mailer  mail.Mailer
	Clock   func() time.Time
}

// InvitationService manages the invitation lifecycle from issuance to
// acceptance.
type InvitationService struct {
	db      *gorm.DB
	bridge  *auth.SessionBridge
	mailer  mail.Mailer
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewInvitationService constructs an InvitationService instance.
func NewInvitationService(db *gorm.DB, bridge *auth.SessionBridge, cfg InvitationServiceConfig) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if bridge == nil {
		return nil, errors.New("invitation service: session bridge is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &InvitationService{
		db:      db,
		bridge:  bridge,
		mailer:  cfg.Mailer,
		ttl:     ttl,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		now:     now,
	}, nil
}

// Create issues an invitation into the actor's company. The raw token is
// returned once; only its digest is stored.
func (s *InvitationService) Create(ctx context.Context, actor Actor, input CreateInvitationInput) (*CreatedInvitation, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = models.InvitationRoleMember
	}
	if role != models.InvitationRoleMember && role != models.InvitationRoleAdmin {
		return nil, apperrors.NewBadRequest("role must be member or admin")
	}

	var companyID string
	switch {
	case actor.IsSuperAdmin && input.CompanyID != nil:
		companyID = *input.CompanyID
	case actor.CompanyID != nil:
		companyID = *actor.CompanyID
	default:
		return nil, apperrors.NewBadRequest("company is required")
	}
	if !actor.ManagesCompany(companyID) {
		return nil, apperrors.ErrForbidden
	}

	var company models.Company
	err := s.db.WithContext(ctx).Take(&company, "id = ?", companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load company: %w", err)
	}

	if input.TeamID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Team{}).
			Where("id = ?", *input.TeamID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("invitation service: check team: %w", err)
		}
		if count == 0 {
			return nil, ErrTeamNotFound
		}
	}

	// A user already in the company does not need an invitation.
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND company_id = ?", email, companyID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("invitation service: check user: %w", err)
	}
	if existing > 0 {
		return nil, apperrors.NewConflict("user is already a member of this company")
	}

	token, err := crypto.GenerateHexToken(32)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	invitation := &models.Invitation{
		Email:     email,
		TokenHash: crypto.TokenDigest(token),
		Role:      role,
		Status:    models.InvitationStatusPending,
		CompanyID: companyID,
		TeamID:    input.TeamID,
		InvitedBy: actor.UserID,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}

	s.deliver(ctx, invitation, company.Name, token)

	return &CreatedInvitation{Invitation: invitation, Token: token}, nil
}

// deliver emails the invite link. Delivery problems are logged, never
// surfaced; the admin still receives the raw token in the API response.
func (s *InvitationService) deliver(ctx context.Context, invitation *models.Invitation, companyName, token string) {
	if s.mailer == nil {
		return
	}

	link := token
	if s.baseURL != "" {
		link = fmt.Sprintf("%s/invitations/%s", s.baseURL, token)
	}

	msg := mail.Message{
		To:      []string{invitation.Email},
		Subject: fmt.Sprintf("You have been invited to join %s", companyName),
		Body: fmt.Sprintf(
			"You have been invited to join %s.\r\n\r\nAccept the invitation here: %s\r\n\r\nThe invitation expires on %s.\r\n",
			companyName, link, invitation.ExpiresAt.UTC().Format(time.RFC1123),
		),
	}

	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.WithModule("invitations").Warn("failed to send invitation email",
			zap.String("invitation_id", invitation.ID),
			zap.Error(err),
		)
	}
}

// List retrieves invitations in the actor's company, newest first. Super
// admins may filter by company or see all.
func (s *InvitationService) List(ctx context.Context, actor Actor, companyID *string, status string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	if !actor.IsAdmin && !actor.IsSuperAdmin {
		return nil, apperrors.ErrForbidden
	}

	query := s.db.WithContext(ctx).Model(&models.Invitation{})
	switch {
	case actor.IsSuperAdmin && companyID != nil:
		query = query.Where("company_id = ?", *companyID)
	case actor.IsSuperAdmin:
		// Unfiltered.
	case actor.CompanyID != nil:
		query = query.Where("company_id = ?", *actor.CompanyID)
	default:
		return []models.Invitation{}, nil
	}
	if status = strings.TrimSpace(status); status != "" {
		query = query.Where("status = ?", status)
	}

	var invitations []models.Invitation
	if err := query.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}

	now := s.now()
	for i := range invitations {
		s.lazyExpire(ctx, &invitations[i], now)
	}

	return invitations, nil
}

// GetByToken resolves an invitation from its raw token. Public: the invitee
// holds only the emailed token, no account yet.
func (s *InvitationService) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Company").
		Preload("Team").
		Take(&invitation, "token_hash = ?", crypto.TokenDigest(token)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: get invitation: %w", err)
	}

	s.lazyExpire(ctx, &invitation, s.now())

	return &invitation, nil
}

// GetByID loads an invitation visible to the actor. Admin surface: the id
// comes from the invitation list, not from the emailed token.
func (s *InvitationService) GetByID(ctx context.Context, actor Actor, id string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Company").
		Preload("Team").
		Take(&invitation, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	if !actor.CanAccessCompany(invitation.CompanyID) {
		return nil, ErrInvitationNotFound
	}

	s.lazyExpire(ctx, &invitation, s.now())

	return &invitation, nil
}

// lazyExpire flips a pending invitation to expired once its window passes.
// The transition is conditional on the row still being pending, so a
// concurrent accept cannot be overwritten.
func (s *InvitationService) lazyExpire(ctx context.Context, invitation *models.Invitation, now time.Time) {
	if invitation.Status != models.InvitationStatusPending || !invitation.Expired(now) {
		return
	}

	result := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusExpired)
	if result.Error != nil {
		logger.WithModule("invitations").Warn("failed to expire invitation",
			zap.String("invitation_id", invitation.ID),
			zap.Error(result.Error),
		)
		return
	}
	if result.RowsAffected > 0 {
		invitation.Status = models.InvitationStatusExpired
	}
}

// Accept consumes a pending invitation: it creates the account inside the
// inviting company, joins the team if one was attached, and signs the new
// user in. The status flip is conditional, so a token can only be consumed
// once.
func (s *InvitationService) Accept(ctx context.Context, input AcceptInvitationInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	invitation, err := s.GetByToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	switch invitation.Status {
	case models.InvitationStatusPending:
	case models.InvitationStatusExpired:
		return nil, ErrInvitationExpired
	default:
		return nil, ErrInvitationNotPending
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("invitation service: hash password: %w", err)
	}

	user := &models.User{
		Name:      name,
		Email:     invitation.Email,
		Password:  hashed,
		IsAdmin:   invitation.Role == models.InvitationRoleAdmin,
		Active:    true,
		CompanyID: &invitation.CompanyID,
	}

	acceptedAt := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
			Updates(map[string]any{
				"status":      models.InvitationStatusAccepted,
				"accepted_at": acceptedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("invitation service: mark accepted: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvitationNotPending
		}

		if err := createUserWithSlug(ctx, tx, user); err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("email already registered")
			}
			return fmt.Errorf("invitation service: create user: %w", err)
		}

		if invitation.TeamID != nil {
			membership := models.UserTeam{
				UserID: user.ID,
				TeamID: *invitation.TeamID,
				Role:   models.TeamRoleMember,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return fmt.Errorf("invitation service: join team: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	pair, _, err := s.bridge.IssueForAccount(ctx, user)
	if err != nil {
		return nil, err
	}

	invitation.Status = models.InvitationStatusAccepted
	invitation.AcceptedAt = &acceptedAt

	return &AuthResult{Tokens: pair, User: user}, nil
}

// Revoke withdraws a pending invitation. Terminal invitations stay as they
// are.
func (s *InvitationService) Revoke(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)

	var invitation models.Invitation
	err := s.db.WithContext(ctx).Take(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvitationNotFound
	}
	if err != nil {
		return fmt.Errorf("invitation service: load invitation: %w", err)
	}

	if !actor.CanAccessCompany(invitation.CompanyID) {
		return ErrInvitationNotFound
	}
	if !actor.ManagesCompany(invitation.CompanyID) {
		return apperrors.ErrForbidden
	}

	result := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusPending).
		Update("status", models.InvitationStatusRevoked)
	if result.Error != nil {
		return fmt.Errorf("invitation service: revoke invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvitationNotPending
	}
	return nil
}

// SweepExpired marks every overdue pending invitation as expired. Used by the
// maintenance cleaner.
func (s *InvitationService) SweepExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationStatusPending, s.now()).
		Update("status", models.InvitationStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: sweep expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeTerminal deletes terminal invitations older than the retention window.
func (s *InvitationService) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	cutoff := s.now().Add(-retention)

	result := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{
			models.InvitationStatusAccepted,
			models.InvitationStatusExpired,
			models.InvitationStatusRevoked,
		}, cutoff).
		Delete(&models.Invitation{})
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: purge terminal: %w", result.Error)
	}
	return result.RowsAffected, nil
}
