package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushClient sends Firebase Cloud Messaging notifications. The zero value
// and a nil *PushClient skip sending.
type PushClient struct {
	messaging *messaging.Client
}

// InitFirebase initializes the Firebase Admin SDK from a service account
// file. An empty path disables push notifications.
func InitFirebase(ctx context.Context, serviceAccountPath string) (*PushClient, error) {
	if serviceAccountPath == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return &PushClient{}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %v", err)
	}

	log.Println("Firebase Cloud Messaging initialized successfully")
	return &PushClient{messaging: client}, nil
}

func (p *PushClient) Enabled() bool {
	return p != nil && p.messaging != nil
}

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Image      string                 `json:"image,omitempty"`
	ChannelID  string                 `json:"channelId,omitempty"`  // Android notification channel
	Priority   string                 `json:"priority,omitempty"`   // high or normal
	BadgeCount *int                   `json:"badgeCount,omitempty"` // iOS badge count
	Tag        string                 `json:"tag,omitempty"`        // Android notification tag
}

// dataStrings flattens the payload data, FCM only carries string values.
func dataStrings(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			out[key] = v
		case int, uint, int64, float64, bool:
			out[key] = fmt.Sprintf("%v", v)
		default:
			jsonData, err := json.Marshal(v)
			if err != nil {
				log.Printf("Error marshaling data for key %s: %v", key, err)
				continue
			}
			out[key] = string(jsonData)
		}
	}
	return out
}

func androidConfig(payload NotificationPayload) *messaging.AndroidConfig {
	channelID := payload.ChannelID
	if channelID == "" {
		channelID = "renthive_default"
	}

	priority := messaging.PriorityHigh
	if payload.Priority == "normal" {
		priority = messaging.PriorityDefault
	}

	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:                 "default",
			ChannelID:             channelID,
			Priority:              priority,
			DefaultSound:          true,
			Icon:                  "ic_stat_logo",
			Color:                 "#F5A623",
			Tag:                   payload.Tag,
			DefaultVibrateTimings: true,
		},
	}
}

func apnsConfig(payload NotificationPayload) *messaging.APNSConfig {
	badge := 1
	if payload.BadgeCount != nil {
		badge = *payload.BadgeCount
	}

	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:            "default",
				Badge:            &badge,
				MutableContent:   true,
				ContentAvailable: true,
			},
		},
	}
}

func buildMessage(token string, payload NotificationPayload) *messaging.Message {
	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:    dataStrings(payload.Data),
		Token:   token,
		Android: androidConfig(payload),
		APNS:    apnsConfig(payload),
	}
	if payload.Image != "" {
		message.Notification.ImageURL = payload.Image
	}
	return message
}

// SendToToken sends a notification to a specific FCM token
func (p *PushClient) SendToToken(ctx context.Context, token string, payload NotificationPayload) error {
	if !p.Enabled() || token == "" {
		return nil
	}

	response, err := p.messaging.Send(ctx, buildMessage(token, payload))
	if err != nil {
		return fmt.Errorf("error sending message: %v", err)
	}

	log.Printf("Sent push notification %q, response: %s", payload.Title, response)
	return nil
}
