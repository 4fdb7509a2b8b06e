// Package repository is the persistence boundary of the booking workflow.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/renthive/renthive-backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when the database rejects a write because it
	// collides with another row (exclusion, unique or serialization failure).
	ErrConflict = errors.New("conflicting write")
)

type ApplicationFilter struct {
	ApplicantID uint
	OwnerID     uint
	ListingKind models.ListingKind
	ListingID   uint
	Status      models.ApplicationStatus
}

// Store is implemented by GormStore in production and MemoryStore in tests.
type Store interface {
	// WithinTx runs fn with a Store bound to one transaction. Listings read
	// through the transactional store are locked until it ends.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Listing(ctx context.Context, kind models.ListingKind, id uint) (*models.ListingRef, error)
	SetListingStatus(ctx context.Context, kind models.ListingKind, id uint, status models.ListingStatus) error

	CreateApplication(ctx context.Context, app *models.Application) error
	Application(ctx context.Context, id uint) (*models.Application, error)
	SaveApplication(ctx context.Context, app *models.Application) error
	// OverlappingApplications returns applications on the listing whose
	// [start, end) range intersects the given one.
	OverlappingApplications(ctx context.Context, kind models.ListingKind, listingID uint, start, end time.Time, statuses []models.ApplicationStatus, excludeID uint) ([]models.Application, error)
	Applications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error)
	CountApplications(ctx context.Context, filter ApplicationFilter) (int64, error)

	CreateRental(ctx context.Context, rental *models.Rental) error
	Rental(ctx context.Context, id uint) (*models.Rental, error)
	// RentalByApplication finds the rental created for an application,
	// whatever its status.
	RentalByApplication(ctx context.Context, applicationID uint) (*models.Rental, error)
	SaveRental(ctx context.Context, rental *models.Rental) error
	OverlappingRentals(ctx context.Context, kind models.ListingKind, listingID uint, start, end time.Time, status models.RentalStatus) ([]models.Rental, error)
	CountRentals(ctx context.Context, kind models.ListingKind, listingID uint, status models.RentalStatus) (int64, error)
	RentalsForUser(ctx context.Context, userID uint) ([]models.Rental, error)
	// EndedRentals lists rentals in status whose end date is on or before day.
	EndedRentals(ctx context.Context, status models.RentalStatus, day time.Time) ([]models.Rental, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error

	CountUnreadNotifications(ctx context.Context, userID uint) (int64, error)
}

// ListingStore holds the owner-facing listing writes.
type ListingStore interface {
	CreateListing(ctx context.Context, row models.ListingRow) error
	ListingRow(ctx context.Context, kind models.ListingKind, id uint) (models.ListingRow, error)
	// UpdateListing locks the row, lets edit change it and saves it. The
	// status column is only written when edit changed it, so a concurrent
	// approval is never rolled back by a details edit.
	UpdateListing(ctx context.Context, kind models.ListingKind, id uint, edit func(models.ListingRow) error) (models.ListingRow, error)
	DeleteListing(ctx context.Context, kind models.ListingKind, id uint) error
}
