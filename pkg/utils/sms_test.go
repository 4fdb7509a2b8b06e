package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renthive/renthive-backend/internal/config"
)

func TestSendSMS(t *testing.T) {
	var got struct {
		apiKey, username, to, message string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got.apiKey = r.Header.Get("apiKey")
		got.username = r.PostForm.Get("username")
		got.to = r.PostForm.Get("to")
		got.message = r.PostForm.Get("message")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewSMSClient(config.SMS{Username: "renthive", APIKey: "key"})
	client.endpoint = srv.URL

	require.NoError(t, client.SendSMS(context.Background(), "+254700000001", "Your application was approved"))
	assert.Equal(t, "key", got.apiKey)
	assert.Equal(t, "renthive", got.username)
	assert.Equal(t, "+254700000001", got.to)
	assert.Equal(t, "Your application was approved", got.message)
}

func TestSendSMSErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewSMSClient(config.SMS{Username: "renthive", APIKey: "bad"})
	client.endpoint = srv.URL
	assert.Error(t, client.SendSMS(context.Background(), "+254700000001", "hi"))

	assert.False(t, NewSMSClient(config.SMS{}).Enabled())
	assert.Error(t, NewSMSClient(config.SMS{}).SendSMS(context.Background(), "+254700000001", "hi"))
}
