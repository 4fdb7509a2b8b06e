package booking_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
)

const (
	ownerID  uint = 10
	tenant1  uint = 20
	tenant2  uint = 30
	listing1 uint = 1
)

type recorder struct {
	mu     sync.Mutex
	events []booking.Event
}

func (r *recorder) Notify(_ context.Context, ev booking.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) of(typ booking.EventType) []booking.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc   *booking.Service
	store *repository.MemoryStore
	rec   *recorder
	now   time.Time
}

func newFixture(t *testing.T, opts ...booking.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryStore(),
		rec:   &recorder{},
		now:   time.Date(2025, 2, 20, 12, 0, 0, 0, time.UTC),
	}
	f.store.AddListing(models.ListingRef{
		ID:      listing1,
		Kind:    models.ListingKindProperty,
		OwnerID: ownerID,
		Title:   "Riverside loft",
		Status:  models.ListingStatusAvailable,
	})
	opts = append([]booking.Option{
		booking.WithNotifier(f.rec),
		booking.WithClock(func() time.Time { return f.now }),
	}, opts...)
	f.svc = booking.NewService(f.store, opts...)
	return f
}

func amount(v float64) *float64 { return &v }

func (f *fixture) submit(t *testing.T, applicant uint, start, end string) (*models.Application, error) {
	t.Helper()
	return f.svc.Submit(context.Background(), booking.SubmitRequest{
		ApplicantID: applicant,
		ListingID:   listing1,
		ListingKind: models.ListingKindProperty,
		StartDate:   day(t, start),
		EndDate:     day(t, end),
		TotalAmount: amount(5000),
	})
}

func (f *fixture) approve(t *testing.T, appID uint) (*booking.DecisionResult, error) {
	t.Helper()
	return f.svc.Decide(context.Background(), booking.DecisionRequest{
		ApplicationID: appID,
		OwnerID:       ownerID,
		Decision:      models.ApplicationStatusApproved,
	})
}

func (f *fixture) listingStatus(t *testing.T) models.ListingStatus {
	t.Helper()
	l, err := f.store.Listing(context.Background(), models.ListingKindProperty, listing1)
	require.NoError(t, err)
	return l.Status
}

func TestScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app1, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app1.Status)
	assert.Equal(t, 4, app1.Duration)
	assert.Equal(t, ownerID, app1.OwnerID)

	_, err = f.submit(t, tenant2, "2025-03-03", "2025-03-07")
	require.Error(t, err)
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))
	assert.Contains(t, err.Error(), "already has a pending request")

	res, err := f.approve(t, app1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, res.Application.Status)
	require.NotNil(t, res.Rental)
	assert.Equal(t, models.RentalStatusActive, res.Rental.Status)
	assert.Equal(t, models.ListingStatusRented, f.listingStatus(t))

	_, err = f.submit(t, tenant2, "2025-03-06", "2025-03-10")
	require.Error(t, err)
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))
	assert.Contains(t, err.Error(), "not available")

	_, err = f.svc.CancelRental(ctx, res.Rental.ID, tenant1)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))

	changes := f.rec.of(booking.EventListingStatusChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, models.ListingStatusRented, changes[0].Listing.Status)
	assert.Equal(t, models.ListingStatusAvailable, changes[1].Listing.Status)
	assert.Zero(t, changes[1].UserID)

	app2, err := f.submit(t, tenant2, "2025-03-06", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app2.Status)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := func() booking.SubmitRequest {
		return booking.SubmitRequest{
			ApplicantID: tenant1,
			ListingID:   listing1,
			ListingKind: models.ListingKindProperty,
			StartDate:   day(t, "2025-03-01"),
			EndDate:     day(t, "2025-03-05"),
			TotalAmount: amount(100),
		}
	}

	tests := []struct {
		name   string
		mutate func(r *booking.SubmitRequest)
	}{
		{"unknown kind", func(r *booking.SubmitRequest) { r.ListingKind = "car" }},
		{"missing applicant", func(r *booking.SubmitRequest) { r.ApplicantID = 0 }},
		{"missing listing", func(r *booking.SubmitRequest) { r.ListingID = 0 }},
		{"missing amount", func(r *booking.SubmitRequest) { r.TotalAmount = nil }},
		{"zero amount", func(r *booking.SubmitRequest) { r.TotalAmount = amount(0) }},
		{"missing start", func(r *booking.SubmitRequest) { r.StartDate = time.Time{} }},
		{"end equals start", func(r *booking.SubmitRequest) { r.EndDate = r.StartDate }},
		{"end before start", func(r *booking.SubmitRequest) { r.EndDate = day(t, "2025-02-01") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)
			_, err := f.svc.Submit(ctx, req)
			require.Error(t, err)
			assert.Equal(t, booking.KindInvalidInput, booking.KindOf(err))
		})
	}

	apps, err := f.svc.ApplicationsForApplicant(ctx, tenant1, "")
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestSubmitUnknownListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), booking.SubmitRequest{
		ApplicantID: tenant1,
		ListingID:   99,
		ListingKind: models.ListingKindBike,
		StartDate:   day(t, "2025-03-01"),
		EndDate:     day(t, "2025-03-02"),
		TotalAmount: amount(30),
	})
	assert.ErrorIs(t, err, booking.ErrListingNotFound)
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
}

func TestSubmitListingStatusIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetListingStatus(context.Background(), models.ListingKindProperty, listing1, "available"))

	_, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	require.NoError(t, f.store.SetListingStatus(context.Background(), models.ListingKindProperty, listing1, models.ListingStatusMaintenance))
	_, err = f.submit(t, tenant2, "2025-04-01", "2025-04-05")
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))
}

func TestCheckoutDayIsFree(t *testing.T) {
	f := newFixture(t)

	_, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.submit(t, tenant2, "2025-03-05", "2025-03-08")
	require.NoError(t, err)
	_, err = f.submit(t, tenant2, "2025-02-25", "2025-03-01")
	require.NoError(t, err)
}

func TestSubmitEmitsNotifications(t *testing.T) {
	f := newFixture(t)
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	submitted := f.rec.of(booking.EventApplicationSubmitted)
	require.Len(t, submitted, 1)
	assert.Equal(t, ownerID, submitted[0].UserID)
	assert.Equal(t, app.ID, submitted[0].Application.ID)

	refresh := f.rec.of(booking.EventCountsRefresh)
	require.Len(t, refresh, 2)
	assert.ElementsMatch(t, []uint{tenant1, ownerID}, []uint{refresh[0].UserID, refresh[1].UserID})
}

func TestNotifierPanicDoesNotFailOperation(t *testing.T) {
	boom := booking.NotifierFunc(func(context.Context, booking.Event) { panic("push gateway down") })
	f := newFixture(t, booking.WithNotifier(boom))

	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
}

func TestApproveTwice(t *testing.T) {
	f := newFixture(t)
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	_, err = f.approve(t, app.ID)
	require.NoError(t, err)

	_, err = f.approve(t, app.ID)
	assert.ErrorIs(t, err, booking.ErrNotPending)
	assert.Len(t, f.store.AllRentals(), 1)

	approved := f.rec.of(booking.EventApplicationApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, tenant1, approved[0].UserID)
}

func TestDecideByOtherUser(t *testing.T) {
	f := newFixture(t)
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	_, err = f.svc.Decide(context.Background(), booking.DecisionRequest{
		ApplicationID: app.ID,
		OwnerID:       tenant2,
		Decision:      models.ApplicationStatusApproved,
	})
	assert.ErrorIs(t, err, booking.ErrNotOwner)
	assert.Equal(t, booking.KindUnauthorized, booking.KindOf(err))
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))
}

func TestDecideValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Decide(context.Background(), booking.DecisionRequest{
		ApplicationID: 1,
		OwnerID:       ownerID,
		Decision:      models.ApplicationStatusPaid,
	})
	assert.Equal(t, booking.KindInvalidInput, booking.KindOf(err))

	_, err = f.approve(t, 404)
	assert.ErrorIs(t, err, booking.ErrApplicationNotFound)
}

func TestRejectReleasesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	res, err := f.svc.Decide(ctx, booking.DecisionRequest{
		ApplicationID:   app.ID,
		OwnerID:         ownerID,
		Decision:        models.ApplicationStatusRejected,
		RejectionReason: "dates reserved for maintenance",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, res.Application.Status)
	assert.Equal(t, "dates reserved for maintenance", res.Application.RejectionReason)
	assert.Nil(t, res.Rental)
	assert.Empty(t, f.store.AllRentals())
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))

	_, err = f.submit(t, tenant2, "2025-03-02", "2025-03-04")
	require.NoError(t, err)
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	decision, err := f.approve(t, app.ID)
	require.NoError(t, err)

	res, err := f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant1, Method: "mpesa"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPaid, res.Application.Status)
	require.NotNil(t, res.Application.PaymentID)
	assert.Equal(t, res.Payment.ID, *res.Application.PaymentID)
	assert.Equal(t, decision.Rental.ID, res.Rental.ID)
	assert.Equal(t, decision.Rental.ID, res.Payment.RentalID)
	assert.Equal(t, tenant1, res.Payment.PayerID)
	assert.Equal(t, ownerID, res.Payment.PayeeID)
	assert.Equal(t, 5000.0, res.Payment.Amount)
	assert.Equal(t, "mpesa", res.Payment.Method)
	assert.NotEmpty(t, res.Payment.Reference)
	assert.Equal(t, f.now, res.Payment.PaidAt)

	assert.Len(t, f.store.Payments(), 1)
	assert.Len(t, f.store.AllRentals(), 1)
	assert.Equal(t, models.ListingStatusRented, f.listingStatus(t))

	paid := f.rec.of(booking.EventApplicationPaid)
	require.Len(t, paid, 2)
	assert.ElementsMatch(t, []uint{tenant1, ownerID}, []uint{paid[0].UserID, paid[1].UserID})

	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant1})
	assert.ErrorIs(t, err, booking.ErrNotApproved)
	assert.Len(t, f.store.Payments(), 1)
}

func TestPayAfterStayCompletedReusesRental(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	decision, err := f.approve(t, app.ID)
	require.NoError(t, err)

	f.now = time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC)
	n, err := f.svc.CompleteEndedRentals(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))

	res, err := f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant1, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, decision.Rental.ID, res.Payment.RentalID)
	assert.Equal(t, models.RentalStatusCompleted, res.Rental.Status)

	rentals := f.store.AllRentals()
	require.Len(t, rentals, 1)
	assert.Equal(t, models.RentalStatusCompleted, rentals[0].Status)
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))
	assert.Len(t, f.rec.of(booking.EventApplicationPaid), 2)
}

func TestPayPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant1})
	assert.ErrorIs(t, err, booking.ErrNotApproved)

	_, err = f.approve(t, app.ID)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant2})
	assert.ErrorIs(t, err, booking.ErrNotApplicant)

	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: 404, ApplicantID: tenant1})
	assert.ErrorIs(t, err, booking.ErrApplicationNotFound)

	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant1, Method: "cheque"})
	assert.Equal(t, booking.KindInvalidInput, booking.KindOf(err))
	assert.Empty(t, f.store.Payments())
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, app.ID, tenant2)
	assert.ErrorIs(t, err, booking.ErrNotApplicant)

	cancelled, err := f.svc.Cancel(ctx, app.ID, tenant1)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, app.ID, tenant1)
	assert.ErrorIs(t, err, booking.ErrNotPending)

	_, err = f.submit(t, tenant2, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
}

func TestCancelOrEditAfterApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.approve(t, app.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, app.ID, tenant1)
	assert.ErrorIs(t, err, booking.ErrNotPending)

	_, err = f.svc.Edit(ctx, booking.EditRequest{
		ApplicationID: app.ID,
		ApplicantID:   tenant1,
		StartDate:     day(t, "2025-03-02"),
		EndDate:       day(t, "2025-03-06"),
		TotalAmount:   amount(5000),
	})
	assert.ErrorIs(t, err, booking.ErrNotPending)
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.submit(t, tenant2, "2025-03-10", "2025-03-12")
	require.NoError(t, err)

	edited, err := f.svc.Edit(ctx, booking.EditRequest{
		ApplicationID: app.ID,
		ApplicantID:   tenant1,
		StartDate:     day(t, "2025-03-03"),
		EndDate:       day(t, "2025-03-10"),
		TotalAmount:   amount(8000),
	})
	require.NoError(t, err, "overlapping its own old range and touching the next check-in is allowed")
	assert.Equal(t, day(t, "2025-03-03"), edited.StartDate)
	assert.Equal(t, 7, edited.Duration)
	assert.Equal(t, 8000.0, edited.TotalAmount)

	_, err = f.svc.Edit(ctx, booking.EditRequest{
		ApplicationID: app.ID,
		ApplicantID:   tenant1,
		StartDate:     day(t, "2025-03-03"),
		EndDate:       day(t, "2025-03-11"),
		TotalAmount:   amount(9000),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a pending request")

	_, err = f.svc.Edit(ctx, booking.EditRequest{
		ApplicationID: app.ID,
		ApplicantID:   tenant1,
		StartDate:     day(t, "2025-03-08"),
		EndDate:       day(t, "2025-03-08"),
		TotalAmount:   amount(9000),
	})
	assert.ErrorIs(t, err, booking.ErrInvalidDateRange)

	_, err = f.svc.Edit(ctx, booking.EditRequest{
		ApplicationID: app.ID,
		ApplicantID:   tenant2,
		StartDate:     day(t, "2025-03-03"),
		EndDate:       day(t, "2025-03-04"),
		TotalAmount:   amount(100),
	})
	assert.ErrorIs(t, err, booking.ErrNotApplicant)

	stored, err := f.svc.GetApplication(ctx, app.ID, tenant1)
	require.NoError(t, err)
	assert.Equal(t, day(t, "2025-03-10"), stored.EndDate)
}

func TestEditRefreshesCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	before := len(f.rec.of(booking.EventCountsRefresh))

	_, err = f.svc.Edit(ctx, booking.EditRequest{
		ApplicationID: app.ID,
		ApplicantID:   tenant1,
		StartDate:     day(t, "2025-03-02"),
		EndDate:       day(t, "2025-03-06"),
		TotalAmount:   amount(5000),
	})
	require.NoError(t, err)

	refresh := f.rec.of(booking.EventCountsRefresh)[before:]
	require.Len(t, refresh, 2)
	assert.ElementsMatch(t, []uint{tenant1, ownerID}, []uint{refresh[0].UserID, refresh[1].UserID})
	assert.Len(t, f.rec.of(booking.EventApplicationUpdated), 1)
}

func TestPaidDatesReportBookedConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.approve(t, app.ID)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: app.ID, ApplicantID: tenant1})
	require.NoError(t, err)

	// Force the listing back open so the calendar check is what refuses.
	require.NoError(t, f.store.SetListingStatus(ctx, models.ListingKindProperty, listing1, models.ListingStatusAvailable))
	_, err = f.submit(t, tenant2, "2025-03-04", "2025-03-06")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already booked and paid")
}

func TestCancelRental(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	res, err := f.approve(t, app.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelRental(ctx, res.Rental.ID, tenant2)
	assert.ErrorIs(t, err, booking.ErrNotRentalParty)

	rental, err := f.svc.CancelRental(ctx, res.Rental.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalStatusCancelled, rental.Status)
	require.NotNil(t, rental.CancelledBy)
	assert.Equal(t, ownerID, *rental.CancelledBy)

	stored, err := f.svc.GetApplication(ctx, app.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusCancelled, stored.Status)
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))

	cancelled := f.rec.of(booking.EventRentalCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, tenant1, cancelled[0].UserID)

	_, err = f.svc.CancelRental(ctx, res.Rental.ID, ownerID)
	assert.ErrorIs(t, err, booking.ErrRentalNotActive)

	_, err = f.svc.CancelRental(ctx, 404, ownerID)
	assert.ErrorIs(t, err, booking.ErrRentalNotFound)
}

func TestRecomputeAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SetListingStatus(ctx, models.ListingKindProperty, listing1, models.ListingStatusRented))
	status, err := f.svc.RecomputeAvailability(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusAvailable, status)
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))

	status, err = f.svc.RecomputeAvailability(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusAvailable, status)

	require.NoError(t, f.store.SetListingStatus(ctx, models.ListingKindProperty, listing1, models.ListingStatusMaintenance))
	status, err = f.svc.RecomputeAvailability(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusMaintenance, status)

	_, err = f.svc.RecomputeAvailability(ctx, models.ListingKindBike, 77)
	assert.ErrorIs(t, err, booking.ErrListingNotFound)
}

func TestCompleteEndedRentals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.approve(t, app.ID)
	require.NoError(t, err)

	f.now = time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC)
	n, err := f.svc.CompleteEndedRentals(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.ListingStatusRented, f.listingStatus(t))

	f.now = time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	n, err = f.svc.CompleteEndedRentals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.ListingStatusAvailable, f.listingStatus(t))

	rentals := f.store.AllRentals()
	require.Len(t, rentals, 1)
	assert.Equal(t, models.RentalStatusCompleted, rentals[0].Status)
	require.NotNil(t, rentals[0].CompletedAt)
	assert.Len(t, f.rec.of(booking.EventRentalCompleted), 2)

	n, err = f.svc.CompleteEndedRentals(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookedRanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	late, err := f.submit(t, tenant1, "2025-04-01", "2025-04-03")
	require.NoError(t, err)
	early, err := f.submit(t, tenant2, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	gone, err := f.submit(t, tenant2, "2025-05-01", "2025-05-02")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, gone.ID, tenant2)
	require.NoError(t, err)
	_, err = f.approve(t, early.ID)
	require.NoError(t, err)

	ranges, err := f.svc.BookedRanges(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, early.StartDate, ranges[0].Start)
	assert.Equal(t, models.ApplicationStatusApproved, ranges[0].Status)
	assert.Equal(t, late.StartDate, ranges[1].Start)
	assert.Equal(t, models.ApplicationStatusPending, ranges[1].Status)

	_, err = f.svc.BookedRanges(ctx, models.ListingKindProperty, 404)
	assert.ErrorIs(t, err, booking.ErrListingNotFound)
}

func TestUpcomingRangesSkipsEndedStays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.approve(t, past.ID)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, booking.PayRequest{ApplicationID: past.ID, ApplicantID: tenant1})
	require.NoError(t, err)
	next, err := f.submit(t, tenant2, "2025-03-10", "2025-03-12")
	require.NoError(t, err)

	upcoming, err := f.svc.UpcomingRanges(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)

	// The checkout day itself no longer counts as upcoming.
	f.now = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	upcoming, err = f.svc.UpcomingRanges(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, next.StartDate, upcoming[0].Start)

	_, err = f.svc.Cancel(ctx, next.ID, tenant2)
	require.NoError(t, err)
	upcoming, err = f.svc.UpcomingRanges(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	assert.Empty(t, upcoming)

	booked, err := f.svc.BookedRanges(ctx, models.ListingKindProperty, listing1)
	require.NoError(t, err)
	assert.Len(t, booked, 1, "paid stays still show on the calendar")
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app, err := f.submit(t, tenant1, "2025-03-01", "2025-03-05")
	require.NoError(t, err)
	_, err = f.submit(t, tenant2, "2025-03-07", "2025-03-09")
	require.NoError(t, err)
	f.store.SetUnread(ownerID, 3)

	_, err = f.svc.GetApplication(ctx, app.ID, tenant2)
	assert.ErrorIs(t, err, booking.ErrNoAccess)

	received, err := f.svc.ApplicationsForOwner(ctx, ownerID, models.ApplicationStatusPending)
	require.NoError(t, err)
	assert.Len(t, received, 2)

	mine, err := f.svc.ApplicationsForApplicant(ctx, tenant1, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, app.ID, mine[0].ID)

	counts, err := f.svc.CountsFor(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, booking.Counts{PendingReceived: 2, UnreadNotifications: 3}, *counts)

	counts, err = f.svc.CountsFor(ctx, tenant1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.PendingSent)

	_, err = f.approve(t, app.ID)
	require.NoError(t, err)
	rentals, err := f.svc.RentalsForUser(ctx, ownerID)
	require.NoError(t, err)
	assert.Len(t, rentals, 1)
}

func TestOwnedListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	listing, err := f.svc.OwnedListing(ctx, models.ListingKindProperty, listing1, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "Riverside loft", listing.Title)

	_, err = f.svc.OwnedListing(ctx, models.ListingKindProperty, listing1, tenant1)
	assert.ErrorIs(t, err, booking.ErrNotListingOwner)
	assert.Equal(t, booking.KindUnauthorized, booking.KindOf(err))

	_, err = f.svc.OwnedListing(ctx, models.ListingKindBike, listing1, ownerID)
	assert.ErrorIs(t, err, booking.ErrListingNotFound)

	_, err = f.svc.OwnedListing(ctx, "car", listing1, ownerID)
	assert.Equal(t, booking.KindInvalidInput, booking.KindOf(err))
}

// conflictStore simulates the exclusion constraint firing on insert.
type conflictStore struct {
	*repository.MemoryStore
}

func (c conflictStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return c.MemoryStore.WithinTx(ctx, func(tx repository.Store) error {
		return fn(conflictTx{tx})
	})
}

type conflictTx struct {
	repository.Store
}

func (conflictTx) CreateApplication(context.Context, *models.Application) error {
	return fmt.Errorf("%w: conflicting key value violates exclusion constraint", repository.ErrConflict)
}

func TestStorageConflictSurfacesAsConflict(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddListing(models.ListingRef{ID: listing1, Kind: models.ListingKindBike, OwnerID: ownerID, Status: models.ListingStatusAvailable})
	reg := prometheus.NewRegistry()
	metrics := booking.NewMetrics(reg)
	svc := booking.NewService(conflictStore{store}, booking.WithMetrics(metrics))

	_, err := svc.Submit(context.Background(), booking.SubmitRequest{
		ApplicantID: tenant1,
		ListingID:   listing1,
		ListingKind: models.ListingKindBike,
		StartDate:   day(t, "2025-03-01"),
		EndDate:     day(t, "2025-03-02"),
		TotalAmount: amount(40),
	})
	assert.ErrorIs(t, err, booking.ErrDateTaken)
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Conflicts.WithLabelValues("submit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Submissions.WithLabelValues("bike")))
}

func TestConcurrentSubmissionsAdmitOne(t *testing.T) {
	f := newFixture(t)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(applicant uint) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), booking.SubmitRequest{
				ApplicantID: applicant,
				ListingID:   listing1,
				ListingKind: models.ListingKindProperty,
				StartDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				EndDate:     time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
				TotalAmount: amount(5000),
			})
			if err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}(uint(100 + i))
	}
	wg.Wait()
	assert.Equal(t, 1, oks)
}
