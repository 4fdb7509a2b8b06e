package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// EventsChannel carries realtime events between API instances.
const EventsChannel = "renthive:events"

// InitRedis connects to redisURL and checks the connection.
func InitRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	return client, nil
}

// RelayMessage is the envelope published on EventsChannel. UserID 0 means
// every connected client.
type RelayMessage struct {
	UserID  uint             `json:"userId"`
	Message WebSocketMessage `json:"message"`
}

// Relay fans realtime messages out through Redis so that whichever instance
// holds the user's socket delivers them. Without a Redis client it delivers
// to the local hub directly.
type Relay struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

func NewRelay(client *redis.Client, hub *Hub) *Relay {
	return &Relay{client: client, hub: hub, channel: EventsChannel}
}

func (r *Relay) Send(ctx context.Context, msg RelayMessage) error {
	if r.client == nil {
		r.deliver(msg)
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

func (r *Relay) deliver(msg RelayMessage) {
	if r.hub == nil {
		return
	}
	if msg.UserID == 0 {
		payload, err := json.Marshal(msg.Message)
		if err != nil {
			log.Printf("Error marshaling relay message: %v", err)
			return
		}
		r.hub.BroadcastToAll(payload)
		return
	}
	r.hub.SendToUser(msg.UserID, msg.Message.Type, msg.Message.Data)
}

// Run subscribes to the channel and delivers messages to the local hub until
// ctx is cancelled. It is a no-op without a Redis client.
func (r *Relay) Run(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg RelayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.Printf("Error unmarshaling relay message: %v", err)
				continue
			}
			r.deliver(msg)
		}
	}
}
