package services

import (
	"fmt"

	"github.com/renthive/renthive-backend/internal/booking"
)

// Message is the human-readable rendering of a booking event.
type Message struct {
	Title string
	Body  string
	// Path is the web app page the email links to.
	Path string
}

func listingName(ev booking.Event) string {
	if ev.Listing.Title != "" {
		return ev.Listing.Title
	}
	return fmt.Sprintf("%s #%d", ev.Listing.Kind, ev.Listing.ID)
}

func dates(ev booking.Event) string {
	switch {
	case ev.Application != nil:
		return fmt.Sprintf("%s to %s", ev.Application.StartDate.Format(booking.DateLayout), ev.Application.EndDate.Format(booking.DateLayout))
	case ev.Rental != nil:
		return fmt.Sprintf("%s to %s", ev.Rental.StartDate.Format(booking.DateLayout), ev.Rental.EndDate.Format(booking.DateLayout))
	}
	return ""
}

// RenderMessage describes ev for its recipient. It reports false for events
// that are signals rather than notifications.
func RenderMessage(ev booking.Event) (Message, bool) {
	name := listingName(ev)
	switch ev.Type {
	case booking.EventApplicationSubmitted:
		return Message{
			Title: "New rental application",
			Body:  fmt.Sprintf("You have a new application for %s from %s.", name, dates(ev)),
			Path:  "/applications/received",
		}, true

	case booking.EventApplicationUpdated:
		return Message{
			Title: "Application updated",
			Body:  fmt.Sprintf("An applicant changed their request for %s to %s.", name, dates(ev)),
			Path:  "/applications/received",
		}, true

	case booking.EventApplicationCancelled:
		return Message{
			Title: "Application withdrawn",
			Body:  fmt.Sprintf("The application for %s from %s was withdrawn.", name, dates(ev)),
			Path:  "/applications/received",
		}, true

	case booking.EventApplicationApproved:
		return Message{
			Title: "Application approved",
			Body:  fmt.Sprintf("Your application for %s from %s was approved. Complete the payment to confirm your stay.", name, dates(ev)),
			Path:  "/applications/mine",
		}, true

	case booking.EventApplicationRejected:
		body := fmt.Sprintf("Your application for %s from %s was declined.", name, dates(ev))
		if ev.Application != nil && ev.Application.RejectionReason != "" {
			body += " Reason: " + ev.Application.RejectionReason
		}
		return Message{Title: "Application declined", Body: body, Path: "/applications/mine"}, true

	case booking.EventApplicationPaid:
		var amount float64
		var ref string
		if ev.Payment != nil {
			amount, ref = ev.Payment.Amount, ev.Payment.Reference
		}
		if ev.Application != nil && ev.UserID == ev.Application.OwnerID {
			return Message{
				Title: "Payment received",
				Body:  fmt.Sprintf("KES %.2f was paid for %s from %s. Reference %s.", amount, name, dates(ev), ref),
				Path:  "/rentals",
			}, true
		}
		return Message{
			Title: "Payment confirmed",
			Body:  fmt.Sprintf("Your payment of KES %.2f for %s is confirmed. Reference %s.", amount, name, ref),
			Path:  "/rentals",
		}, true

	case booking.EventRentalCancelled:
		return Message{
			Title: "Rental cancelled",
			Body:  fmt.Sprintf("The rental of %s from %s was cancelled.", name, dates(ev)),
			Path:  "/rentals",
		}, true

	case booking.EventRentalCompleted:
		return Message{
			Title: "Rental completed",
			Body:  fmt.Sprintf("The rental of %s from %s has ended.", name, dates(ev)),
			Path:  "/rentals",
		}, true
	}
	return Message{}, false
}
