package models

import (
	"time"

	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusPaid      ApplicationStatus = "paid"
	ApplicationStatusCancelled ApplicationStatus = "cancelled"
)

// HoldingStatuses are the application states that occupy the listing's calendar.
var HoldingStatuses = []ApplicationStatus{
	ApplicationStatusPending,
	ApplicationStatusApproved,
	ApplicationStatusPaid,
}

// Holds reports whether an application in this status blocks its dates.
func (s ApplicationStatus) Holds() bool {
	for _, h := range HoldingStatuses {
		if s == h {
			return true
		}
	}
	return false
}

// Application is a prospective rental awaiting or past the owner's decision.
type Application struct {
	gorm.Model
	ApplicantID     uint              `json:"applicantId" gorm:"not null;index"`
	Applicant       *User             `json:"applicant,omitempty" gorm:"foreignKey:ApplicantID"`
	OwnerID         uint              `json:"ownerId" gorm:"not null;index"`
	ListingID       uint              `json:"listingId" gorm:"not null;index:idx_applications_listing"`
	ListingKind     ListingKind       `json:"listingKind" gorm:"not null;index:idx_applications_listing"`
	StartDate       time.Time         `json:"startDate" gorm:"type:date;not null"`
	EndDate         time.Time         `json:"endDate" gorm:"type:date;not null"`
	Duration        int               `json:"duration" gorm:"not null"` // in days
	TotalAmount     float64           `json:"totalAmount" gorm:"not null"`
	Status          ApplicationStatus `json:"status" gorm:"not null;default:'pending';index"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	PaymentID       *uint             `json:"paymentId,omitempty"`
}

// TableName specifies the table name
func (Application) TableName() string {
	return "applications"
}
