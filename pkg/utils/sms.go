package utils

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/renthive/renthive-backend/internal/config"
)

const africasTalkingURL = "https://api.africastalking.com/version1/messaging"

// SMSClient sends text messages through Africa's Talking.
type SMSClient struct {
	username string
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewSMSClient(cfg config.SMS) *SMSClient {
	return &SMSClient{
		username: cfg.Username,
		apiKey:   cfg.APIKey,
		endpoint: africasTalkingURL,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMSClient) Enabled() bool {
	return s != nil && s.username != "" && s.apiKey != ""
}

func (s *SMSClient) SendSMS(ctx context.Context, phone, message string) error {
	if !s.Enabled() {
		return fmt.Errorf("africa's talking credentials not set")
	}
	if phone == "" {
		return fmt.Errorf("recipient phone number is empty")
	}

	data := url.Values{}
	data.Set("username", s.username)
	data.Set("to", phone)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apiKey", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send SMS: status code %d", resp.StatusCode)
	}

	log.Printf("Sent SMS to %s", phone)
	return nil
}
