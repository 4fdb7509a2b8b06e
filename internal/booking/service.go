// Package booking owns the rental application workflow: the availability
// check that keeps a listing's calendar free of overlaps and the state
// machine that moves applications from pending to paid.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
)

type Service struct {
	store    repository.Store
	notifier Notifier
	metrics  *Metrics
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newRef   func() string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now, used for payment timestamps and for deciding
// which rentals have ended.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store repository.Store, opts ...Option) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Service{
		store:    store,
		notifier: nopNotifier{},
		log:      slog.Default(),
		validate: v,
		now:      time.Now,
		newRef:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) check(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return newError(KindInvalidInput, "%s", err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return newError(KindInvalidInput, "%s is required", fe.Field())
	case "oneof":
		return newError(KindInvalidInput, "%s must be one of: %s", fe.Field(), fe.Param())
	case "gt":
		return newError(KindInvalidInput, "%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return newError(KindInvalidInput, "%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return newError(KindInvalidInput, "%s is invalid", fe.Field())
	}
}

// listingFor loads a listing. Read through a transactional store the row
// stays locked until the transaction ends.
func listingFor(ctx context.Context, st repository.Store, kind models.ListingKind, id uint) (*models.ListingRef, error) {
	listing, err := st.Listing(ctx, kind, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	return listing, err
}

func loadApplication(ctx context.Context, st repository.Store, id uint) (*models.Application, error) {
	app, err := st.Application(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

func loadRental(ctx context.Context, st repository.Store, id uint) (*models.Rental, error) {
	rental, err := st.Rental(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRentalNotFound
	}
	return rental, err
}

// checkCalendar refuses rng when another application holding the listing
// overlaps it.
func checkCalendar(ctx context.Context, tx repository.Store, listing *models.ListingRef, rng DateRange, excludeID uint) error {
	clashes, err := tx.OverlappingApplications(ctx, listing.Kind, listing.ID, rng.Start, rng.End, models.HoldingStatuses, excludeID)
	if err != nil {
		return err
	}
	if len(clashes) == 0 {
		return nil
	}
	for _, c := range clashes {
		if c.Status != models.ApplicationStatusPending {
			return newError(KindConflict, "This %s is already booked and paid for the selected dates", listing.Kind)
		}
	}
	return newError(KindConflict, "This %s already has a pending request for the selected dates", listing.Kind)
}

// ensureRental returns the rental created for app, creating it on first use.
// An existing rental is returned whatever its status; callers decide what a
// Completed or Cancelled one means.
func ensureRental(ctx context.Context, tx repository.Store, app *models.Application) (*models.Rental, error) {
	rental, err := tx.RentalByApplication(ctx, app.ID)
	if err == nil {
		return rental, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	rental = &models.Rental{
		ApplicationID: app.ID,
		ListingID:     app.ListingID,
		ListingKind:   app.ListingKind,
		TenantID:      app.ApplicantID,
		OwnerID:       app.OwnerID,
		StartDate:     app.StartDate,
		EndDate:       app.EndDate,
		TotalAmount:   app.TotalAmount,
		Status:        models.RentalStatusActive,
	}
	if err := tx.CreateRental(ctx, rental); err != nil {
		return nil, err
	}
	return rental, nil
}

// markRented flips the listing to Rented and reports whether it changed.
func markRented(ctx context.Context, tx repository.Store, listing *models.ListingRef) (bool, error) {
	if listing.Status == models.ListingStatusRented {
		return false, nil
	}
	if err := tx.SetListingStatus(ctx, listing.Kind, listing.ID, models.ListingStatusRented); err != nil {
		return false, err
	}
	listing.Status = models.ListingStatusRented
	return true, nil
}

// recompute sets the listing to Rented while it has an Active rental and to
// Available otherwise. Maintenance and Inactive are left alone.
func recompute(ctx context.Context, tx repository.Store, listing *models.ListingRef) (models.ListingStatus, error) {
	switch {
	case strings.EqualFold(string(listing.Status), string(models.ListingStatusMaintenance)),
		strings.EqualFold(string(listing.Status), string(models.ListingStatusInactive)):
		return listing.Status, nil
	}

	active, err := tx.CountRentals(ctx, listing.Kind, listing.ID, models.RentalStatusActive)
	if err != nil {
		return "", err
	}
	want := models.ListingStatusAvailable
	if active > 0 {
		want = models.ListingStatusRented
	}
	if listing.Status != want {
		if err := tx.SetListingStatus(ctx, listing.Kind, listing.ID, want); err != nil {
			return "", err
		}
		listing.Status = want
	}
	return want, nil
}

// dispatch hands events to the notifier once the transaction that raised
// them committed. The request context may already be cancelled by then.
func (s *Service) dispatch(ctx context.Context, events []Event) {
	ctx = context.WithoutCancel(ctx)
	for _, ev := range events {
		s.notifyOne(ctx, ev)
	}
}

func (s *Service) notifyOne(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notifier panicked", "event", ev.Type, "user_id", ev.UserID, "panic", r)
		}
	}()
	s.notifier.Notify(ctx, ev)
}

func listingChanged(listing models.ListingRef) Event {
	return Event{Type: EventListingStatusChanged, Listing: listing}
}

func countsRefresh(listing models.ListingRef, users ...uint) []Event {
	events := make([]Event, 0, len(users))
	for _, u := range users {
		events = append(events, Event{Type: EventCountsRefresh, UserID: u, Listing: listing})
	}
	return events
}
