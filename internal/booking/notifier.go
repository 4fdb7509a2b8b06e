package booking

import (
	"context"

	"github.com/renthive/renthive-backend/internal/models"
)

type EventType string

const (
	EventApplicationSubmitted EventType = "application_submitted"
	EventApplicationUpdated   EventType = "application_updated"
	EventApplicationCancelled EventType = "application_cancelled"
	EventApplicationApproved  EventType = "application_approved"
	EventApplicationRejected  EventType = "application_rejected"
	EventApplicationPaid      EventType = "application_paid"
	EventRentalCancelled      EventType = "rental_cancelled"
	EventRentalCompleted      EventType = "rental_completed"

	// EventCountsRefresh tells a client to re-fetch its badge counts.
	EventCountsRefresh EventType = "refresh_counts"

	// EventListingStatusChanged has no recipient; it goes to every client.
	EventListingStatusChanged EventType = "listing_status_changed"
)

// Event is addressed to a single recipient, or to everyone when UserID is 0.
type Event struct {
	Type        EventType
	UserID      uint
	ActorID     uint
	Listing     models.ListingRef
	Application *models.Application
	Rental      *models.Rental
	Payment     *models.Payment
}

// Notifier delivers events after the operation that raised them committed.
// Implementations handle their own failures; Notify never reports one.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// MultiNotifier fans each event out to every notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}
