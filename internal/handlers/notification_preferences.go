package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/models"
)

func loadPreferences(db *gorm.DB, userID uint) (*models.NotificationPreference, error) {
	var preferences models.NotificationPreference
	err := db.Where("user_id = ?", userID).First(&preferences).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Create default preferences if not found
		defaults := models.DefaultPreferences(userID)
		if err := db.Create(defaults).Error; err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &preferences, nil
}

// GetNotificationPreferences retrieves user's notification preferences
func GetNotificationPreferences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		preferences, err := loadPreferences(db.WithContext(c.Request.Context()), c.GetUint("userId"))
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch preferences"})
			return
		}
		c.JSON(200, preferences)
	}
}

// UpdateNotificationPreferences updates user's notification preferences
func UpdateNotificationPreferences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			PushEnabled       *bool `json:"pushEnabled"`
			ApplicationAlerts *bool `json:"applicationAlerts"`
			PaymentAlerts     *bool `json:"paymentAlerts"`
			RentalAlerts      *bool `json:"rentalAlerts"`
			EmailEnabled      *bool `json:"emailEnabled"`
			SMSEnabled        *bool `json:"smsEnabled"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		tx := db.WithContext(c.Request.Context())
		preferences, err := loadPreferences(tx, c.GetUint("userId"))
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch preferences"})
			return
		}

		// Update only provided fields
		for _, f := range []struct {
			dst *bool
			src *bool
		}{
			{&preferences.PushEnabled, input.PushEnabled},
			{&preferences.ApplicationAlerts, input.ApplicationAlerts},
			{&preferences.PaymentAlerts, input.PaymentAlerts},
			{&preferences.RentalAlerts, input.RentalAlerts},
			{&preferences.EmailEnabled, input.EmailEnabled},
			{&preferences.SMSEnabled, input.SMSEnabled},
		} {
			if f.src != nil {
				*f.dst = *f.src
			}
		}

		if err := tx.Save(preferences).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update preferences"})
			return
		}

		c.JSON(200, gin.H{
			"message":     "Preferences updated successfully",
			"preferences": preferences,
		})
	}
}
