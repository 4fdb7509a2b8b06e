package models

import (
	"time"

	"gorm.io/gorm"
)

type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "Active"
	RentalStatusCompleted RentalStatus = "Completed"
	RentalStatusCancelled RentalStatus = "Cancelled"
	RentalStatusRejected  RentalStatus = "Rejected"
)

// Rental is the realized occupancy of a listing once an application is approved.
type Rental struct {
	gorm.Model
	ApplicationID uint         `json:"applicationId" gorm:"not null;uniqueIndex"`
	ListingID     uint         `json:"listingId" gorm:"not null;index:idx_rentals_scope"`
	ListingKind   ListingKind  `json:"listingKind" gorm:"not null;index:idx_rentals_scope"`
	TenantID      uint         `json:"tenantId" gorm:"not null;index;index:idx_rentals_scope"`
	OwnerID       uint         `json:"ownerId" gorm:"not null;index"`
	StartDate     time.Time    `json:"startDate" gorm:"type:date;not null;index:idx_rentals_scope"`
	EndDate       time.Time    `json:"endDate" gorm:"type:date;not null"`
	TotalAmount   float64      `json:"totalAmount" gorm:"not null"`
	Status        RentalStatus `json:"status" gorm:"not null;default:'Active'"`
	CancelledBy   *uint        `json:"cancelledBy,omitempty"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

// TableName specifies the table name
func (Rental) TableName() string {
	return "rentals"
}
