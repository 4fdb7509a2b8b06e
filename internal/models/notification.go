package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is the persisted copy of an event shown in the user's inbox.
type Notification struct {
	gorm.Model
	UserID uint           `json:"userId" gorm:"not null;index"`
	Type   string         `json:"type" gorm:"not null"`
	Title  string         `json:"title" gorm:"not null"`
	Body   string         `json:"body"`
	Data   datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	IsRead bool           `json:"isRead" gorm:"not null;default:false;index"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}
