package booking

import (
	"context"
	"time"

	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
)

type SubmitRequest struct {
	ApplicantID uint               `json:"applicantId" validate:"required"`
	ListingID   uint               `json:"listingId" validate:"required"`
	ListingKind models.ListingKind `json:"listingKind" validate:"required,oneof=property bike"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     time.Time          `json:"endDate"`
	TotalAmount *float64           `json:"totalAmount" validate:"required,gt=0"`
}

// Submit files a pending application for a listing after checking that the
// listing is available and that no other application holds the dates.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	rng, err := NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	var (
		app    *models.Application
		events []Event
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		listing, err := listingFor(ctx, tx, req.ListingKind, req.ListingID)
		if err != nil {
			return err
		}
		if !listing.Status.IsAvailable() {
			return newError(KindConflict, "This %s is not available for rent", listing.Kind)
		}
		if err := checkCalendar(ctx, tx, listing, rng, 0); err != nil {
			return err
		}

		app = &models.Application{
			ApplicantID: req.ApplicantID,
			OwnerID:     listing.OwnerID,
			ListingID:   listing.ID,
			ListingKind: listing.Kind,
			StartDate:   rng.Start,
			EndDate:     rng.End,
			Duration:    rng.Days(),
			TotalAmount: *req.TotalAmount,
			Status:      models.ApplicationStatusPending,
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}

		events = append(events, Event{
			Type:        EventApplicationSubmitted,
			UserID:      listing.OwnerID,
			ActorID:     req.ApplicantID,
			Listing:     *listing,
			Application: app,
		})
		events = append(events, countsRefresh(*listing, req.ApplicantID, listing.OwnerID)...)
		return nil
	})
	if err != nil {
		s.metrics.failed("submit", err)
		return nil, normalize(err)
	}

	s.metrics.submitted(string(app.ListingKind))
	s.log.Info("application submitted",
		"application_id", app.ID,
		"listing_kind", app.ListingKind,
		"listing_id", app.ListingID,
		"applicant_id", app.ApplicantID,
		"start", app.StartDate.Format(DateLayout),
		"end", app.EndDate.Format(DateLayout),
	)
	s.dispatch(ctx, events)
	return app, nil
}

type DecisionRequest struct {
	ApplicationID   uint                     `json:"applicationId" validate:"required"`
	OwnerID         uint                     `json:"ownerId" validate:"required"`
	Decision        models.ApplicationStatus `json:"decision" validate:"required,oneof=approved rejected"`
	RejectionReason string                   `json:"rejectionReason" validate:"max=500"`
}

type DecisionResult struct {
	Application *models.Application `json:"application"`
	Rental      *models.Rental      `json:"rental,omitempty"`
}

// Decide approves or rejects a pending application on behalf of the
// listing's owner. Approval marks the listing Rented and opens a rental.
func (s *Service) Decide(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	var (
		result DecisionResult
		events []Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		app, err := loadApplication(ctx, tx, req.ApplicationID)
		if err != nil {
			return err
		}
		listing, err := listingFor(ctx, tx, app.ListingKind, app.ListingID)
		if err != nil {
			return err
		}
		if listing.OwnerID != req.OwnerID {
			return ErrNotOwner
		}
		// Re-read under the listing lock.
		if app, err = loadApplication(ctx, tx, req.ApplicationID); err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusPending {
			return ErrNotPending
		}

		if req.Decision == models.ApplicationStatusRejected {
			app.Status = models.ApplicationStatusRejected
			app.RejectionReason = req.RejectionReason
			if err := tx.SaveApplication(ctx, app); err != nil {
				return err
			}
			result.Application = app
			events = append(events, Event{
				Type:        EventApplicationRejected,
				UserID:      app.ApplicantID,
				ActorID:     req.OwnerID,
				Listing:     *listing,
				Application: app,
			})
			events = append(events, countsRefresh(*listing, app.ApplicantID, listing.OwnerID)...)
			return nil
		}

		booked, err := tx.OverlappingApplications(ctx, listing.Kind, listing.ID, app.StartDate, app.EndDate,
			[]models.ApplicationStatus{models.ApplicationStatusApproved, models.ApplicationStatusPaid}, app.ID)
		if err != nil {
			return err
		}
		if len(booked) > 0 {
			return newError(KindConflict, "This %s is already booked and paid for the selected dates", listing.Kind)
		}
		rentals, err := tx.OverlappingRentals(ctx, listing.Kind, listing.ID, app.StartDate, app.EndDate, models.RentalStatusActive)
		if err != nil {
			return err
		}
		for _, r := range rentals {
			if r.ApplicationID != app.ID {
				return newError(KindConflict, "This %s has an active rental for the selected dates", listing.Kind)
			}
		}

		app.Status = models.ApplicationStatusApproved
		app.RejectionReason = ""
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		rental, err := ensureRental(ctx, tx, app)
		if err != nil {
			return err
		}
		if rental.Status == models.RentalStatusActive {
			changed, err := markRented(ctx, tx, listing)
			if err != nil {
				return err
			}
			if changed {
				events = append(events, listingChanged(*listing))
			}
		}

		result.Application, result.Rental = app, rental
		events = append(events, Event{
			Type:        EventApplicationApproved,
			UserID:      app.ApplicantID,
			ActorID:     req.OwnerID,
			Listing:     *listing,
			Application: app,
			Rental:      rental,
		})
		events = append(events, countsRefresh(*listing, app.ApplicantID, listing.OwnerID)...)
		return nil
	})
	if err != nil {
		s.metrics.failed("decide", err)
		return nil, normalize(err)
	}

	s.metrics.decided(string(req.Decision))
	s.log.Info("application decided",
		"application_id", result.Application.ID,
		"decision", req.Decision,
		"owner_id", req.OwnerID,
	)
	s.dispatch(ctx, events)
	return &result, nil
}

type PayRequest struct {
	ApplicationID uint   `json:"applicationId" validate:"required"`
	ApplicantID   uint   `json:"applicantId" validate:"required"`
	Method        string `json:"method" validate:"omitempty,oneof=card mpesa bank cash"`
}

type PaymentResult struct {
	Application *models.Application `json:"application"`
	Rental      *models.Rental      `json:"rental"`
	Payment     *models.Payment     `json:"payment"`
}

// Pay records the payment for an approved application and links it to the
// rental opened at approval.
func (s *Service) Pay(ctx context.Context, req PayRequest) (*PaymentResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = "card"
	}

	var (
		result PaymentResult
		events []Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		app, err := loadApplication(ctx, tx, req.ApplicationID)
		if err != nil {
			return err
		}
		if app.ApplicantID != req.ApplicantID {
			return ErrNotApplicant
		}
		listing, err := listingFor(ctx, tx, app.ListingKind, app.ListingID)
		if err != nil {
			return err
		}
		if app, err = loadApplication(ctx, tx, req.ApplicationID); err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusApproved {
			return ErrNotApproved
		}

		rental, err := ensureRental(ctx, tx, app)
		if err != nil {
			return err
		}
		if rental.Status == models.RentalStatusCancelled {
			return newError(KindConflict, "The rental for this application was cancelled")
		}
		payment := &models.Payment{
			RentalID:      rental.ID,
			ApplicationID: app.ID,
			PayerID:       app.ApplicantID,
			PayeeID:       listing.OwnerID,
			Amount:        app.TotalAmount,
			Method:        method,
			Reference:     s.newRef(),
			Status:        models.PaymentStatusCompleted,
			PaidAt:        s.now(),
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		app.Status = models.ApplicationStatusPaid
		app.PaymentID = &payment.ID
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		// A stay that already ended keeps its Completed rental and leaves
		// the listing as it is.
		if rental.Status == models.RentalStatusActive {
			changed, err := markRented(ctx, tx, listing)
			if err != nil {
				return err
			}
			if changed {
				events = append(events, listingChanged(*listing))
			}
		}

		result = PaymentResult{Application: app, Rental: rental, Payment: payment}
		for _, to := range []uint{listing.OwnerID, app.ApplicantID} {
			events = append(events, Event{
				Type:        EventApplicationPaid,
				UserID:      to,
				ActorID:     req.ApplicantID,
				Listing:     *listing,
				Application: app,
				Rental:      rental,
				Payment:     payment,
			})
		}
		events = append(events, countsRefresh(*listing, app.ApplicantID, listing.OwnerID)...)
		return nil
	})
	if err != nil {
		s.metrics.failed("pay", err)
		return nil, normalize(err)
	}

	s.metrics.paid(result.Payment.Amount)
	s.log.Info("application paid",
		"application_id", result.Application.ID,
		"payment_id", result.Payment.ID,
		"reference", result.Payment.Reference,
		"amount", result.Payment.Amount,
	)
	s.dispatch(ctx, events)
	return &result, nil
}

// Cancel withdraws a pending application. Only the applicant may do so.
func (s *Service) Cancel(ctx context.Context, applicationID, applicantID uint) (*models.Application, error) {
	var (
		app    *models.Application
		events []Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		if app, err = loadApplication(ctx, tx, applicationID); err != nil {
			return err
		}
		if app.ApplicantID != applicantID {
			return ErrNotApplicant
		}
		listing, err := listingFor(ctx, tx, app.ListingKind, app.ListingID)
		if err != nil {
			return err
		}
		if app, err = loadApplication(ctx, tx, applicationID); err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusPending {
			return ErrNotPending
		}

		app.Status = models.ApplicationStatusCancelled
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		events = append(events, Event{
			Type:        EventApplicationCancelled,
			UserID:      listing.OwnerID,
			ActorID:     applicantID,
			Listing:     *listing,
			Application: app,
		})
		events = append(events, countsRefresh(*listing, applicantID, listing.OwnerID)...)
		return nil
	})
	if err != nil {
		s.metrics.failed("cancel", err)
		return nil, normalize(err)
	}

	s.metrics.cancelled("application")
	s.log.Info("application cancelled", "application_id", app.ID, "applicant_id", applicantID)
	s.dispatch(ctx, events)
	return app, nil
}

type EditRequest struct {
	ApplicationID uint      `json:"applicationId" validate:"required"`
	ApplicantID   uint      `json:"applicantId" validate:"required"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	TotalAmount   *float64  `json:"totalAmount" validate:"required,gt=0"`
}

// Edit moves a pending application to new dates and amount, re-running the
// calendar check without counting the application against itself.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*models.Application, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	rng, err := NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	var (
		app    *models.Application
		events []Event
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		if app, err = loadApplication(ctx, tx, req.ApplicationID); err != nil {
			return err
		}
		if app.ApplicantID != req.ApplicantID {
			return ErrNotApplicant
		}
		listing, err := listingFor(ctx, tx, app.ListingKind, app.ListingID)
		if err != nil {
			return err
		}
		if app, err = loadApplication(ctx, tx, req.ApplicationID); err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusPending {
			return ErrNotPending
		}
		if err := checkCalendar(ctx, tx, listing, rng, app.ID); err != nil {
			return err
		}

		app.StartDate = rng.Start
		app.EndDate = rng.End
		app.Duration = rng.Days()
		app.TotalAmount = *req.TotalAmount
		if err := tx.SaveApplication(ctx, app); err != nil {
			return err
		}
		events = append(events, Event{
			Type:        EventApplicationUpdated,
			UserID:      listing.OwnerID,
			ActorID:     req.ApplicantID,
			Listing:     *listing,
			Application: app,
		})
		events = append(events, countsRefresh(*listing, app.ApplicantID, listing.OwnerID)...)
		return nil
	})
	if err != nil {
		s.metrics.failed("edit", err)
		return nil, normalize(err)
	}

	s.log.Info("application updated",
		"application_id", app.ID,
		"start", app.StartDate.Format(DateLayout),
		"end", app.EndDate.Format(DateLayout),
	)
	s.dispatch(ctx, events)
	return app, nil
}
