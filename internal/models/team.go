package models

import "time"

// Team is a cross-cutting group of users. Teams are not tenant-scoped: a
// team may hold members from any company, and names are unique across the
// whole system. Teams use an integer primary key, unlike the UUID-keyed
// tenant models.
type Team struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`

	Users []User `gorm:"many2many:user_teams;" json:"users,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
