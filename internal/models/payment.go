package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	gorm.Model
	RentalID      uint          `json:"rentalId" gorm:"not null;index"`
	ApplicationID uint          `json:"applicationId" gorm:"not null;uniqueIndex"`
	PayerID       uint          `json:"payerId" gorm:"not null;index"`
	PayeeID       uint          `json:"payeeId" gorm:"not null;index"`
	Amount        float64       `json:"amount" gorm:"not null"`
	Method        string        `json:"method" gorm:"not null;default:'card'"`
	Reference     string        `json:"reference" gorm:"not null;uniqueIndex"`
	Status        PaymentStatus `json:"status" gorm:"not null;default:'completed'"`
	PaidAt        time.Time     `json:"paidAt" gorm:"not null"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}
