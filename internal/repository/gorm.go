package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/renthive/renthive-backend/internal/models"
)

// GormStore persists the booking workflow in PostgreSQL.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
	return translate(err)
}

func (s *GormStore) Listing(ctx context.Context, kind models.ListingKind, id uint) (*models.ListingRef, error) {
	var row struct {
		ID      uint
		OwnerID uint
		Title   string
		Status  models.ListingStatus
	}
	q := s.db.WithContext(ctx).
		Table(models.ListingTable(kind)).
		Select("id, owner_id, title, status").
		Where("id = ? AND deleted_at IS NULL", id)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Take(&row).Error; err != nil {
		return nil, translate(err)
	}
	return &models.ListingRef{
		ID:      row.ID,
		Kind:    kind,
		OwnerID: row.OwnerID,
		Title:   row.Title,
		Status:  row.Status,
	}, nil
}

func (s *GormStore) SetListingStatus(ctx context.Context, kind models.ListingKind, id uint, status models.ListingStatus) error {
	res := s.db.WithContext(ctx).
		Table(models.ListingTable(kind)).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateApplication(ctx context.Context, app *models.Application) error {
	return translate(s.db.WithContext(ctx).Create(app).Error)
}

func (s *GormStore) Application(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *GormStore) SaveApplication(ctx context.Context, app *models.Application) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Save(app).Error)
}

func (s *GormStore) OverlappingApplications(ctx context.Context, kind models.ListingKind, listingID uint, start, end time.Time, statuses []models.ApplicationStatus, excludeID uint) ([]models.Application, error) {
	q := s.db.WithContext(ctx).
		Where("listing_kind = ? AND listing_id = ?", kind, listingID).
		Where("status IN ?", statuses).
		Where("start_date < ? AND end_date > ?", end, start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var apps []models.Application
	if err := q.Order("start_date ASC").Find(&apps).Error; err != nil {
		return nil, translate(err)
	}
	return apps, nil
}

func (s *GormStore) applicationQuery(ctx context.Context, filter ApplicationFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Application{})
	if filter.ApplicantID != 0 {
		q = q.Where("applicant_id = ?", filter.ApplicantID)
	}
	if filter.OwnerID != 0 {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.ListingKind != "" {
		q = q.Where("listing_kind = ?", filter.ListingKind)
	}
	if filter.ListingID != 0 {
		q = q.Where("listing_id = ?", filter.ListingID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

func (s *GormStore) Applications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error) {
	var apps []models.Application
	if err := s.applicationQuery(ctx, filter).Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, translate(err)
	}
	return apps, nil
}

func (s *GormStore) CountApplications(ctx context.Context, filter ApplicationFilter) (int64, error) {
	var n int64
	if err := s.applicationQuery(ctx, filter).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (s *GormStore) CreateRental(ctx context.Context, rental *models.Rental) error {
	return translate(s.db.WithContext(ctx).Create(rental).Error)
}

func (s *GormStore) Rental(ctx context.Context, id uint) (*models.Rental, error) {
	var rental models.Rental
	if err := s.db.WithContext(ctx).First(&rental, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rental, nil
}

func (s *GormStore) RentalByApplication(ctx context.Context, applicationID uint) (*models.Rental, error) {
	var rental models.Rental
	err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("id ASC").
		First(&rental).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rental, nil
}

func (s *GormStore) SaveRental(ctx context.Context, rental *models.Rental) error {
	return translate(s.db.WithContext(ctx).Save(rental).Error)
}

func (s *GormStore) OverlappingRentals(ctx context.Context, kind models.ListingKind, listingID uint, start, end time.Time, status models.RentalStatus) ([]models.Rental, error) {
	var rentals []models.Rental
	err := s.db.WithContext(ctx).
		Where("listing_kind = ? AND listing_id = ? AND status = ?", kind, listingID, status).
		Where("start_date < ? AND end_date > ?", end, start).
		Find(&rentals).Error
	if err != nil {
		return nil, translate(err)
	}
	return rentals, nil
}

func (s *GormStore) CountRentals(ctx context.Context, kind models.ListingKind, listingID uint, status models.RentalStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Rental{}).
		Where("listing_kind = ? AND listing_id = ? AND status = ?", kind, listingID, status).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) RentalsForUser(ctx context.Context, userID uint) ([]models.Rental, error) {
	var rentals []models.Rental
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? OR owner_id = ?", userID, userID).
		Order("start_date DESC").
		Find(&rentals).Error
	if err != nil {
		return nil, translate(err)
	}
	return rentals, nil
}

func (s *GormStore) EndedRentals(ctx context.Context, status models.RentalStatus, day time.Time) ([]models.Rental, error) {
	var rentals []models.Rental
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", status, day).
		Find(&rentals).Error
	if err != nil {
		return nil, translate(err)
	}
	return rentals, nil
}

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return translate(s.db.WithContext(ctx).Create(payment).Error)
}

func (s *GormStore) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) CreateListing(ctx context.Context, row models.ListingRow) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error)
}

func (s *GormStore) ListingRow(ctx context.Context, kind models.ListingKind, id uint) (models.ListingRow, error) {
	row := models.NewListingRow(kind)
	if err := s.db.WithContext(ctx).Preload("Owner").First(row, id).Error; err != nil {
		return nil, translate(err)
	}
	return row, nil
}

func (s *GormStore) UpdateListing(ctx context.Context, kind models.ListingKind, id uint, edit func(models.ListingRow) error) (models.ListingRow, error) {
	row := models.NewListingRow(kind)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(row, id).Error; err != nil {
			return err
		}
		before := row.Ref().Status
		if err := edit(row); err != nil {
			return err
		}
		omit := []string{clause.Associations}
		if row.Ref().Status == before {
			omit = append(omit, "status")
		}
		return tx.Omit(omit...).Save(row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return row, nil
}

func (s *GormStore) DeleteListing(ctx context.Context, kind models.ListingKind, id uint) error {
	res := s.db.WithContext(ctx).Delete(models.NewListingRow(kind), id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation, pgerrcode.UniqueViolation, pgerrcode.SerializationFailure:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}
