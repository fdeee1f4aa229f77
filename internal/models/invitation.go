package models

import "time"

// Invitation lifecycle states. Pending invitations may transition to
// accepted, expired, or revoked; the terminal states never change again.
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusExpired  = "expired"
	InvitationStatusRevoked  = "revoked"
)

// Roles an invitation may grant on acceptance.
const (
	InvitationRoleMember = "member"
	InvitationRoleAdmin  = "admin"
)

// Invitation represents an emailed offer to join a company. The raw token is
// only ever sent to the invitee; the database keeps its digest.
type Invitation struct {
	BaseModel

	Email     string `gorm:"not null;index" json:"email"`
	TokenHash string `gorm:"uniqueIndex;not null" json:"-"`
	Role      string `gorm:"not null;default:member" json:"role"`
	Status    string `gorm:"not null;default:pending;index" json:"status"`

	CompanyID string   `gorm:"type:uuid;not null;index" json:"company_id"`
	Company   *Company `json:"company,omitempty"`

	TeamID *uint `gorm:"index" json:"team_id,omitempty"`
	Team   *Team `gorm:"constraint:OnDelete:SET NULL" json:"team,omitempty"`

	InvitedBy string `gorm:"type:uuid" json:"invited_by"`

	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
}

// Expired reports whether the invitation window has passed at the given time.
func (i *Invitation) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
