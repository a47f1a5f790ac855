package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

type PushOptions struct {
	ServiceURL string
	Token      string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// PushAdapter hands notifications to a push service that fans out to the
// member's registered devices.
type PushAdapter struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

type pushPayload struct {
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Data      map[string]string `json:"data"`
}

func NewPushAdapter(opts PushOptions) *PushAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PushAdapter{
		url:    opts.ServiceURL,
		token:  opts.Token,
		client: &http.Client{Timeout: timeout},
		logger: logging.Component(opts.Logger, "push_adapter"),
	}
}

func (p *PushAdapter) Kind() models.DeliveryMethod { return models.DeliveryPush }

func (p *PushAdapter) Attempt(ctx context.Context, r models.Recipient, msg Message) Outcome {
	if r.ID == "" {
		return Skipped()
	}
	if p.url == "" {
		return Failed(fmt.Errorf("push service is not configured"))
	}

	payload := pushPayload{
		UserID: r.ID,
		Title:  msg.Subject(),
		Body:   msg.Body,
		Data: map[string]string{
			"alert_id": msg.AlertID,
			"severity": string(msg.Severity),
			"type":     string(msg.Type),
		},
	}
	if !msg.ExpiresAt.IsZero() {
		exp := msg.ExpiresAt.UTC()
		payload.ExpiresAt = &exp
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Failed(fmt.Errorf("marshal push payload: %w", err))
	}

	headers := map[string]string{}
	if p.token != "" {
		headers["Authorization"] = "Bearer " + p.token
	}

	code, err := postJSON(ctx, p.client, p.url, headers, body)
	if err != nil {
		p.logger.Debug("push delivery failed", "alert_id", msg.AlertID, "recipient_id", r.ID, "error", err)
		return Failed(fmt.Errorf("push service: %w", err))
	}
	return outcomeFor(code)
}
