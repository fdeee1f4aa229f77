package database

import (
	"errors"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Team{},
		&models.UserTeam{},
		&models.Invitation{},
		&models.RefreshToken{},
		&models.CacheEntry{},
	)
}

// SeedData provisions the bootstrap super admin account. The account is only
// created when no super admin exists yet and CREWDECK_ADMIN_PASSWORD is set,
// so repeated start-ups never clobber an operator-managed account.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("is_super_admin = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := strings.TrimSpace(os.Getenv("CREWDECK_ADMIN_PASSWORD"))
	if password == "" {
		return nil
	}

	email := strings.TrimSpace(os.Getenv("CREWDECK_ADMIN_EMAIL"))
	if email == "" {
		email = "admin@crewdeck.local"
	}
	email = strings.ToLower(email)

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:         "Administrator",
		Email:        email,
		Password:     hash,
		Slug:         "administrator",
		IsAdmin:      true,
		IsSuperAdmin: true,
		Active:       true,
	}

	err = db.Where(models.User{Email: email}).Attrs(admin).FirstOrCreate(&models.User{}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return nil
}
