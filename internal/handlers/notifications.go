package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
)

// GetNotifications lists the user's inbox, newest first.
func GetNotifications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		limit := 50
		if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 200 {
			limit = l
		}

		q := db.WithContext(c.Request.Context()).Where("user_id = ?", userID)
		if c.Query("unread") == "true" {
			q = q.Where("is_read = ?", false)
		}

		var notifications []models.Notification
		if err := q.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch notifications"})
			return
		}
		c.JSON(200, gin.H{"notifications": notifications})
	}
}

// GetCounts returns the badge counts a client re-fetches on refresh_counts.
func GetCounts(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := svc.CountsFor(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, counts)
	}
}

func refreshCounts(c *gin.Context, notifier booking.Notifier, userID uint) {
	notifier.Notify(c.Request.Context(), booking.Event{Type: booking.EventCountsRefresh, UserID: userID})
}

// MarkNotificationRead marks one of the user's notifications as read.
func MarkNotificationRead(db *gorm.DB, notifier booking.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		res := db.WithContext(c.Request.Context()).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("is_read", true)
		if res.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to update notification"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(404, gin.H{"error": "Notification not found"})
			return
		}

		refreshCounts(c, notifier, userID)
		c.JSON(200, gin.H{"message": "Notification marked as read"})
	}
}

// MarkAllNotificationsRead clears the user's unread badge.
func MarkAllNotificationsRead(db *gorm.DB, notifier booking.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		res := db.WithContext(c.Request.Context()).Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Update("is_read", true)
		if res.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to update notifications"})
			return
		}

		refreshCounts(c, notifier, userID)
		c.JSON(200, gin.H{
			"message": "Notifications marked as read",
			"updated": res.RowsAffected,
		})
	}
}

// RegisterFCMToken registers or updates a user's FCM token
func RegisterFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			FCMToken string `json:"fcmToken" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := db.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", input.FCMToken).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to register FCM token"})
			return
		}

		c.JSON(200, gin.H{"message": "FCM token registered successfully"})
	}
}

// RemoveFCMToken removes a user's FCM token
func RemoveFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		// Clear user's FCM token
		if err := db.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", "").Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to remove FCM token"})
			return
		}

		c.JSON(200, gin.H{
			"message": "FCM token removed successfully",
		})
	}
}
