package booking

import (
	"context"
	"sort"

	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
)

type BookedRange struct {
	DateRange
	Status models.ApplicationStatus `json:"status"`
}

// BookedRanges lists the date ranges currently held on a listing, earliest
// first.
func (s *Service) BookedRanges(ctx context.Context, kind models.ListingKind, listingID uint) ([]BookedRange, error) {
	if !kind.Valid() {
		return nil, newError(KindInvalidInput, "listingKind must be one of: property bike")
	}
	if _, err := listingFor(ctx, s.store, kind, listingID); err != nil {
		return nil, normalize(err)
	}
	apps, err := s.store.Applications(ctx, repository.ApplicationFilter{ListingKind: kind, ListingID: listingID})
	if err != nil {
		return nil, normalize(err)
	}

	ranges := make([]BookedRange, 0, len(apps))
	for _, a := range apps {
		if !a.Status.Holds() {
			continue
		}
		ranges = append(ranges, BookedRange{
			DateRange: DateRange{Start: Day(a.StartDate), End: Day(a.EndDate)},
			Status:    a.Status,
		})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })
	return ranges, nil
}

// UpcomingRanges is BookedRanges without the stays that ended on or before
// today. Paid applications keep holding their dates after the stay, so this
// is what decides whether a listing still has bookings to honour.
func (s *Service) UpcomingRanges(ctx context.Context, kind models.ListingKind, listingID uint) ([]BookedRange, error) {
	ranges, err := s.BookedRanges(ctx, kind, listingID)
	if err != nil {
		return nil, err
	}
	today := Day(s.now())
	upcoming := ranges[:0]
	for _, r := range ranges {
		if r.End.After(today) {
			upcoming = append(upcoming, r)
		}
	}
	return upcoming, nil
}

// OwnedListing loads a listing on behalf of its owner.
func (s *Service) OwnedListing(ctx context.Context, kind models.ListingKind, listingID, ownerID uint) (*models.ListingRef, error) {
	if !kind.Valid() {
		return nil, newError(KindInvalidInput, "listingKind must be one of: property bike")
	}
	listing, err := listingFor(ctx, s.store, kind, listingID)
	if err != nil {
		return nil, normalize(err)
	}
	if listing.OwnerID != ownerID {
		return nil, ErrNotListingOwner
	}
	return listing, nil
}

// GetApplication returns an application to its applicant or the listing owner.
func (s *Service) GetApplication(ctx context.Context, applicationID, userID uint) (*models.Application, error) {
	app, err := loadApplication(ctx, s.store, applicationID)
	if err != nil {
		return nil, normalize(err)
	}
	if app.ApplicantID != userID && app.OwnerID != userID {
		return nil, ErrNoAccess
	}
	return app, nil
}

func (s *Service) ApplicationsForApplicant(ctx context.Context, applicantID uint, status models.ApplicationStatus) ([]models.Application, error) {
	apps, err := s.store.Applications(ctx, repository.ApplicationFilter{ApplicantID: applicantID, Status: status})
	return apps, normalize(err)
}

func (s *Service) ApplicationsForOwner(ctx context.Context, ownerID uint, status models.ApplicationStatus) ([]models.Application, error) {
	apps, err := s.store.Applications(ctx, repository.ApplicationFilter{OwnerID: ownerID, Status: status})
	return apps, normalize(err)
}

func (s *Service) RentalsForUser(ctx context.Context, userID uint) ([]models.Rental, error) {
	rentals, err := s.store.RentalsForUser(ctx, userID)
	return rentals, normalize(err)
}

// Counts backs the badges a client re-fetches on a counts refresh.
type Counts struct {
	PendingReceived     int64 `json:"pendingReceived"`
	PendingSent         int64 `json:"pendingSent"`
	UnreadNotifications int64 `json:"unreadNotifications"`
}

func (s *Service) CountsFor(ctx context.Context, userID uint) (*Counts, error) {
	var c Counts
	var err error
	if c.PendingReceived, err = s.store.CountApplications(ctx, repository.ApplicationFilter{
		OwnerID: userID, Status: models.ApplicationStatusPending,
	}); err != nil {
		return nil, normalize(err)
	}
	if c.PendingSent, err = s.store.CountApplications(ctx, repository.ApplicationFilter{
		ApplicantID: userID, Status: models.ApplicationStatusPending,
	}); err != nil {
		return nil, normalize(err)
	}
	if c.UnreadNotifications, err = s.store.CountUnreadNotifications(ctx, userID); err != nil {
		return nil, normalize(err)
	}
	return &c, nil
}
