package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
)

// CancelRental ends an Active rental early. The linked application is
// cancelled too so its dates are released, and the listing's status is
// recomputed.
func (s *Service) CancelRental(ctx context.Context, rentalID, actorID uint) (*models.Rental, error) {
	var (
		rental *models.Rental
		events []Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		if rental, err = loadRental(ctx, tx, rentalID); err != nil {
			return err
		}
		if actorID != rental.TenantID && actorID != rental.OwnerID {
			return ErrNotRentalParty
		}
		listing, err := listingFor(ctx, tx, rental.ListingKind, rental.ListingID)
		if err != nil {
			return err
		}
		if rental, err = loadRental(ctx, tx, rentalID); err != nil {
			return err
		}
		if rental.Status != models.RentalStatusActive {
			return ErrRentalNotActive
		}

		rental.Status = models.RentalStatusCancelled
		rental.CancelledBy = &actorID
		if err := tx.SaveRental(ctx, rental); err != nil {
			return err
		}

		app, err := tx.Application(ctx, rental.ApplicationID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		case app.Status.Holds():
			app.Status = models.ApplicationStatusCancelled
			if err := tx.SaveApplication(ctx, app); err != nil {
				return err
			}
		}

		before := listing.Status
		if _, err := recompute(ctx, tx, listing); err != nil {
			return err
		}
		if listing.Status != before {
			events = append(events, listingChanged(*listing))
		}

		other := rental.OwnerID
		if actorID == rental.OwnerID {
			other = rental.TenantID
		}
		events = append(events, Event{
			Type:    EventRentalCancelled,
			UserID:  other,
			ActorID: actorID,
			Listing: *listing,
			Rental:  rental,
		})
		events = append(events, countsRefresh(*listing, rental.TenantID, rental.OwnerID)...)
		return nil
	})
	if err != nil {
		s.metrics.failed("cancel_rental", err)
		return nil, normalize(err)
	}

	s.metrics.cancelled("rental")
	s.log.Info("rental cancelled", "rental_id", rental.ID, "cancelled_by", actorID)
	s.dispatch(ctx, events)
	return rental, nil
}

// RecomputeAvailability derives the listing's status from its Active
// rentals. Calling it repeatedly is harmless.
func (s *Service) RecomputeAvailability(ctx context.Context, kind models.ListingKind, listingID uint) (models.ListingStatus, error) {
	if !kind.Valid() {
		return "", newError(KindInvalidInput, "listingKind must be one of: property bike")
	}
	var (
		status models.ListingStatus
		events []Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		listing, err := listingFor(ctx, tx, kind, listingID)
		if err != nil {
			return err
		}
		before := listing.Status
		if status, err = recompute(ctx, tx, listing); err != nil {
			return err
		}
		if status != before {
			events = append(events, listingChanged(*listing))
		}
		return nil
	})
	if err != nil {
		return "", normalize(err)
	}
	s.dispatch(ctx, events)
	return status, nil
}

// CompleteEndedRentals moves Active rentals whose end date is today or
// earlier to Completed and frees their listings. It returns how many
// rentals changed; failures on one rental do not stop the others.
func (s *Service) CompleteEndedRentals(ctx context.Context) (int, error) {
	today := Day(s.now())
	ended, err := s.store.EndedRentals(ctx, models.RentalStatusActive, today)
	if err != nil {
		return 0, fmt.Errorf("booking: list ended rentals: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, r := range ended {
		changed, events, err := s.completeRental(ctx, r.ID)
		if err != nil {
			s.log.Error("failed to complete rental", "rental_id", r.ID, "error", err)
			errs = append(errs, fmt.Errorf("rental %d: %w", r.ID, err))
			continue
		}
		if changed {
			done++
			s.dispatch(ctx, events)
		}
	}
	s.metrics.completed(done)
	if done > 0 {
		s.log.Info("completed ended rentals", "count", done, "day", today.Format(DateLayout))
	}
	return done, errors.Join(errs...)
}

func (s *Service) completeRental(ctx context.Context, rentalID uint) (bool, []Event, error) {
	var (
		changed bool
		events  []Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		rental, err := loadRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		listing, err := listingFor(ctx, tx, rental.ListingKind, rental.ListingID)
		if err != nil {
			return err
		}
		if rental, err = loadRental(ctx, tx, rentalID); err != nil {
			return err
		}
		if rental.Status != models.RentalStatusActive {
			return nil
		}

		now := s.now()
		rental.Status = models.RentalStatusCompleted
		rental.CompletedAt = &now
		if err := tx.SaveRental(ctx, rental); err != nil {
			return err
		}
		before := listing.Status
		if _, err := recompute(ctx, tx, listing); err != nil {
			return err
		}
		if listing.Status != before {
			events = append(events, listingChanged(*listing))
		}

		changed = true
		for _, to := range []uint{rental.TenantID, rental.OwnerID} {
			events = append(events, Event{
				Type:    EventRentalCompleted,
				UserID:  to,
				Listing: *listing,
				Rental:  rental,
			})
		}
		return nil
	})
	return changed, events, normalize(err)
}
