package models

import "gorm.io/datatypes"

// Company is the tenant boundary. Users belong to at most one company;
// super admins operate across all of them.
type Company struct {
	BaseModel

	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `json:"description"`
	Settings    datatypes.JSON `json:"settings"`

	Users []User `gorm:"foreignKey:CompanyID" json:"users,omitempty"`
}
