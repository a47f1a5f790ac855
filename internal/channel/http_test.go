package channel_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-alert-dispatch/internal/channel"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

func testMessage() channel.Message {
	return channel.Message{
		AlertID:   "alert-1",
		Type:      models.AlertTypeFlood,
		Severity:  models.AlertSeverityHigh,
		Title:     "River rising",
		Body:      "Move to higher ground now.",
		ExpiresAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

func testRecipient() models.Recipient {
	return models.NewRecipient(models.Member{
		ID:          "u1",
		Name:        "Ana",
		Email:       "ana@example.com",
		Phone:       "+15550001",
		CommunityID: "C1",
	})
}

func TestSMSAdapter_Attempt(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := channel.NewSMSAdapter(channel.SMSOptions{GatewayURL: server.URL})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())

	assert.Equal(t, channel.StatusSent, out.Status)
	assert.Equal(t, "+15550001", received["to"])
	assert.Equal(t, "alert-1", received["alert_id"])
	assert.Contains(t, received["body"], "[HIGH FLOOD] River rising")
}

func TestSMSAdapter_Signature(t *testing.T) {
	var signature string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Signature-256")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := channel.NewSMSAdapter(channel.SMSOptions{GatewayURL: server.URL, Secret: "s3cret"})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())
	require.Equal(t, channel.StatusSent, out.Status)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestSMSAdapter_SkipsWithoutPhone(t *testing.T) {
	a := channel.NewSMSAdapter(channel.SMSOptions{GatewayURL: "http://127.0.0.1:1"})
	r := models.NewRecipient(models.Member{ID: "u2", Email: "ben@example.com"})

	out := a.Attempt(context.Background(), r, testMessage())
	assert.Equal(t, channel.StatusSkipped, out.Status)
}

func TestSMSAdapter_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("carrier offline"))
	}))
	defer server.Close()

	a := channel.NewSMSAdapter(channel.SMSOptions{GatewayURL: server.URL})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())

	assert.Equal(t, channel.StatusFailed, out.Status)
	assert.Contains(t, out.ErrorDetail, "status 503")
	assert.Contains(t, out.ErrorDetail, "carrier offline")
}

func TestSMSAdapter_NotConfigured(t *testing.T) {
	a := channel.NewSMSAdapter(channel.SMSOptions{})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())

	assert.Equal(t, channel.StatusFailed, out.Status)
	assert.Contains(t, out.ErrorDetail, "not configured")
}

func TestSMSAdapter_TruncatesLongText(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	msg := testMessage()
	msg.Body = strings.Repeat("x", 1000)

	a := channel.NewSMSAdapter(channel.SMSOptions{GatewayURL: server.URL})
	out := a.Attempt(context.Background(), testRecipient(), msg)

	require.Equal(t, channel.StatusSent, out.Status)
	assert.Len(t, []rune(received["body"]), 480)
	assert.True(t, strings.HasSuffix(received["body"], "..."))
}

func TestPushAdapter_Attempt(t *testing.T) {
	var received map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := channel.NewPushAdapter(channel.PushOptions{ServiceURL: server.URL, Token: "tok"})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())

	assert.Equal(t, channel.StatusSent, out.Status)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "u1", received["user_id"])
	data, ok := received["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alert-1", data["alert_id"])
	assert.NotEmpty(t, received["expires_at"])
}

func TestPushAdapter_AcceptedIsPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	a := channel.NewPushAdapter(channel.PushOptions{ServiceURL: server.URL})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())

	assert.Equal(t, channel.StatusPending, out.Status)
}

func TestPushAdapter_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	a := channel.NewPushAdapter(channel.PushOptions{ServiceURL: url, Timeout: time.Second})
	out := a.Attempt(context.Background(), testRecipient(), testMessage())

	assert.Equal(t, channel.StatusFailed, out.Status)
	assert.NotEmpty(t, out.ErrorDetail)
}
