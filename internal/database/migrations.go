package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/models"
)

// applicationsNoOverlap keeps two holding applications from covering the same
// day of one listing. Ranges are half-open so a checkout day stays bookable.
const applicationsNoOverlap = `
ALTER TABLE applications ADD CONSTRAINT applications_no_overlap
EXCLUDE USING gist (
	listing_kind WITH =,
	listing_id WITH =,
	daterange(start_date, end_date, '[)') WITH &&
) WHERE (status IN ('pending', 'approved', 'paid') AND deleted_at IS NULL)`

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Bike{},
		&models.Application{},
		&models.Rental{},
		&models.Payment{},
		&models.Notification{},
		&models.NotificationPreference{},
	)
	if err != nil {
		return err
	}

	// Update constraint
	db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
	if err := db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('vendor', 'lessor'))`).Error; err != nil {
		return fmt.Errorf("users_user_type_check: %w", err)
	}

	if err := db.Exec(`ALTER TABLE applications DROP CONSTRAINT IF EXISTS applications_valid_range`).Error; err != nil {
		return err
	}
	if err := db.Exec(`ALTER TABLE applications ADD CONSTRAINT applications_valid_range CHECK (start_date < end_date)`).Error; err != nil {
		return fmt.Errorf("applications_valid_range: %w", err)
	}

	// The exclusion constraint needs btree_gist for the equality columns.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return fmt.Errorf("btree_gist: %w", err)
	}

	var constraintExists bool
	err = db.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM pg_constraint
			WHERE conname = 'applications_no_overlap'
		)`).Scan(&constraintExists).Error
	if err != nil {
		return err
	}
	if !constraintExists {
		if err := db.Exec(applicationsNoOverlap).Error; err != nil {
			return fmt.Errorf("applications_no_overlap: %w", err)
		}
	}

	return nil
}
