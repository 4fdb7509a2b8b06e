package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"gorm.io/datatypes"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
)

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	Recipient(ctx context.Context, userID uint) (*models.User, *models.NotificationPreference, error)
}

type Realtime interface {
	Send(ctx context.Context, msg RelayMessage) error
}

type Pusher interface {
	SendToToken(ctx context.Context, token string, payload NotificationPayload) error
}

type EmailSender interface {
	SendNotificationEmail(to, name, title, message, path string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Dispatcher delivers booking events to a user's inbox, open sockets, phone
// and mailbox. Every channel is optional, and a failing channel is logged
// without affecting the others.
type Dispatcher struct {
	store    NotificationStore
	realtime Realtime
	push     Pusher
	email    EmailSender
	sms      SMSSender
	log      *slog.Logger
	wg       sync.WaitGroup
}

type DispatcherOptions struct {
	Store    NotificationStore
	Realtime Realtime
	Push     Pusher
	Email    EmailSender
	SMS      SMSSender
	Logger   *slog.Logger
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		store:    opts.Store,
		realtime: opts.Realtime,
		push:     opts.Push,
		email:    opts.Email,
		sms:      opts.SMS,
		log:      opts.Logger,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// Wait blocks until background email, SMS and push deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) Notify(ctx context.Context, ev booking.Event) {
	switch {
	case ev.Type == booking.EventListingStatusChanged:
		d.sendRealtime(ctx, 0, ev.Type, map[string]interface{}{
			"listingKind": ev.Listing.Kind,
			"listingId":   ev.Listing.ID,
			"status":      ev.Listing.Status,
		})
		return
	case ev.UserID == 0:
		return
	case ev.Type == booking.EventCountsRefresh:
		d.sendRealtime(ctx, ev.UserID, ev.Type, map[string]interface{}{"userId": ev.UserID})
		return
	}

	msg, ok := RenderMessage(ev)
	if !ok {
		return
	}
	data := eventData(ev)

	n := &models.Notification{
		UserID: ev.UserID,
		Type:   string(ev.Type),
		Title:  msg.Title,
		Body:   msg.Body,
	}
	if raw, err := json.Marshal(data); err == nil {
		n.Data = datatypes.JSON(raw)
	}
	if d.store != nil {
		if err := d.store.CreateNotification(ctx, n); err != nil {
			d.log.Warn("failed to store notification", "user_id", ev.UserID, "event", ev.Type, "error", err)
		}
	}

	d.sendRealtime(ctx, ev.UserID, ev.Type, map[string]interface{}{
		"notification": n,
		"event":        data,
	})

	if d.store == nil {
		return
	}
	user, prefs, err := d.store.Recipient(ctx, ev.UserID)
	if err != nil {
		d.log.Warn("failed to load notification recipient", "user_id", ev.UserID, "error", err)
		return
	}
	if !wants(prefs, ev.Type) {
		return
	}

	if d.push != nil && prefs.PushEnabled && user.FCMToken != "" {
		d.background(func() {
			payload := NotificationPayload{Title: msg.Title, Body: msg.Body, Data: data, Tag: string(ev.Type)}
			if err := d.push.SendToToken(ctx, user.FCMToken, payload); err != nil {
				d.log.Warn("push notification failed", "user_id", user.ID, "event", ev.Type, "error", err)
			}
		})
	}
	if d.email != nil && prefs.EmailEnabled && user.Email != "" {
		d.background(func() {
			if err := d.email.SendNotificationEmail(user.Email, user.Username, msg.Title, msg.Body, msg.Path); err != nil {
				d.log.Warn("email notification failed", "user_id", user.ID, "event", ev.Type, "error", err)
			}
		})
	}
	if d.sms != nil && prefs.SMSEnabled && user.PhoneNumber != "" && textWorthy(ev.Type) {
		d.background(func() {
			if err := d.sms.SendSMS(ctx, user.PhoneNumber, msg.Title+": "+msg.Body); err != nil {
				d.log.Warn("sms notification failed", "user_id", user.ID, "event", ev.Type, "error", err)
			}
		})
	}
}

func (d *Dispatcher) background(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func (d *Dispatcher) sendRealtime(ctx context.Context, userID uint, typ booking.EventType, data interface{}) {
	if d.realtime == nil {
		return
	}
	msg := RelayMessage{UserID: userID, Message: WebSocketMessage{Type: string(typ), Data: data}}
	if err := d.realtime.Send(ctx, msg); err != nil {
		d.log.Warn("realtime delivery failed", "user_id", userID, "event", typ, "error", err)
	}
}

// wants applies the per-category switches.
func wants(prefs *models.NotificationPreference, typ booking.EventType) bool {
	switch typ {
	case booking.EventApplicationPaid:
		return prefs.PaymentAlerts
	case booking.EventRentalCancelled, booking.EventRentalCompleted:
		return prefs.RentalAlerts
	default:
		return prefs.ApplicationAlerts
	}
}

// textWorthy limits SMS to the events a user has to act on.
func textWorthy(typ booking.EventType) bool {
	switch typ {
	case booking.EventApplicationSubmitted, booking.EventApplicationApproved,
		booking.EventApplicationRejected, booking.EventApplicationPaid, booking.EventRentalCancelled:
		return true
	}
	return false
}

func eventData(ev booking.Event) map[string]interface{} {
	data := map[string]interface{}{
		"type":        string(ev.Type),
		"listingKind": string(ev.Listing.Kind),
		"listingId":   ev.Listing.ID,
	}
	if ev.Application != nil {
		data["applicationId"] = ev.Application.ID
		data["status"] = string(ev.Application.Status)
	}
	if ev.Rental != nil {
		data["rentalId"] = ev.Rental.ID
	}
	if ev.Payment != nil {
		data["paymentId"] = ev.Payment.ID
		data["reference"] = ev.Payment.Reference
	}
	return data
}
