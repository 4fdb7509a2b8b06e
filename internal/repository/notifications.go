package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/models"
)

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error)
}

// Recipient loads a user with their notification preferences, falling back
// to the defaults when none were saved.
func (s *GormStore) Recipient(ctx context.Context, userID uint) (*models.User, *models.NotificationPreference, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, nil, translate(err)
	}

	var prefs models.NotificationPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &user, models.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, nil, translate(err)
	}
	return &user, &prefs, nil
}
