package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

const maxSMSLength = 480

type SMSOptions struct {
	GatewayURL string
	Secret     string
	RatePerSec int // 0 disables throttling
	Timeout    time.Duration
	Logger     *slog.Logger
}

// SMSAdapter posts messages to an HTTP SMS gateway. When a secret is set the
// body is signed with HMAC-SHA256 in the X-Signature-256 header.
type SMSAdapter struct {
	url     string
	secret  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

type smsPayload struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	AlertID string `json:"alert_id"`
}

func NewSMSAdapter(opts SMSOptions) *SMSAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return &SMSAdapter{
		url:     opts.GatewayURL,
		secret:  opts.Secret,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logging.Component(opts.Logger, "sms_adapter"),
	}
}

func (s *SMSAdapter) Kind() models.DeliveryMethod { return models.DeliverySMS }

func (s *SMSAdapter) Attempt(ctx context.Context, r models.Recipient, msg Message) Outcome {
	to := strings.TrimSpace(r.Phone)
	if to == "" {
		return Skipped()
	}
	if s.url == "" {
		return Failed(fmt.Errorf("sms gateway is not configured"))
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Failed(fmt.Errorf("sms rate limiter: %w", err))
		}
	}

	body, err := json.Marshal(smsPayload{
		To:      to,
		Body:    smsText(msg),
		AlertID: msg.AlertID,
	})
	if err != nil {
		return Failed(fmt.Errorf("marshal sms payload: %w", err))
	}

	headers := map[string]string{}
	if s.secret != "" {
		headers["X-Signature-256"] = "sha256=" + computeHMAC(body, []byte(s.secret))
	}

	code, err := postJSON(ctx, s.client, s.url, headers, body)
	if err != nil {
		s.logger.Debug("sms delivery failed", "alert_id", msg.AlertID, "recipient_id", r.ID, "error", err)
		return Failed(fmt.Errorf("sms gateway: %w", err))
	}
	return outcomeFor(code)
}

func smsText(msg Message) string {
	text := msg.Subject() + ": " + msg.Body
	runes := []rune(text)
	if len(runes) > maxSMSLength {
		text = string(runes[:maxSMSLength-3]) + "..."
	}
	return text
}
