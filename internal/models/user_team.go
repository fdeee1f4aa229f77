package models

import "time"

// Membership roles within a team.
const (
	TeamRoleMember = "member"
	TeamRoleLead   = "lead"
)

// UserTeam is the join row between users and teams, carrying the member role.
type UserTeam struct {
	UserID string `gorm:"primaryKey;type:uuid" json:"user_id"`
	TeamID uint   `gorm:"primaryKey" json:"team_id"`

	Role     string    `gorm:"not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName pins the join table name used by the many2many association.
func (UserTeam) TableName() string {
	return "user_teams"
}
