package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

const (
	smtpSecurityNone     = "none"
	smtpSecurityStartTLS = "starttls"
	smtpSecurityTLS      = "tls"
)

type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Security string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// EmailAdapter relays one message per recipient through an SMTP server.
type EmailAdapter struct {
	host     string
	port     int
	username string
	password string
	from     string
	security string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewEmailAdapter(opts EmailOptions) *EmailAdapter {
	security := strings.ToLower(strings.TrimSpace(opts.Security))
	switch security {
	case smtpSecurityNone, smtpSecurityStartTLS, smtpSecurityTLS:
	default:
		security = smtpSecurityStartTLS
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailAdapter{
		host:     strings.TrimSpace(opts.Host),
		port:     opts.Port,
		username: strings.TrimSpace(opts.Username),
		password: opts.Password,
		from:     strings.TrimSpace(opts.From),
		security: security,
		timeout:  timeout,
		logger:   logging.Component(opts.Logger, "email_adapter"),
	}
}

func (e *EmailAdapter) Kind() models.DeliveryMethod { return models.DeliveryEmail }

func (e *EmailAdapter) Attempt(ctx context.Context, r models.Recipient, msg Message) Outcome {
	to := strings.TrimSpace(r.Email)
	if to == "" {
		return Skipped()
	}
	if e.host == "" || e.port == 0 || e.from == "" {
		return Failed(fmt.Errorf("smtp is not configured"))
	}

	if err := e.send(ctx, to, e.buildMessage(r, msg)); err != nil {
		e.logger.Debug("email delivery failed", "alert_id", msg.AlertID, "recipient_id", r.ID, "error", err)
		return Failed(err)
	}
	return Sent()
}

func (e *EmailAdapter) buildMessage(r models.Recipient, msg Message) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", headerValue(e.from)),
		fmt.Sprintf("To: %s", headerValue(r.Email)),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject()))),
		fmt.Sprintf("Date: %s", time.Now().UTC().Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: <%s@%s>", uuid.NewString(), e.messageIDDomain()),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	lines := []string{}
	if r.Name != "" {
		lines = append(lines, fmt.Sprintf("Hello %s,", r.Name), "")
	}
	lines = append(lines,
		msg.Body,
		"",
		fmt.Sprintf("Severity: %s", strings.ToUpper(string(msg.Severity))),
		fmt.Sprintf("Type: %s", msg.Type),
	)
	if !msg.ExpiresAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Valid until: %s", msg.ExpiresAt.UTC().Format(time.RFC1123)))
	}

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.Join(lines, "\r\n") + "\r\n")
}

// headerValue folds a value onto one line so it cannot open a new header.
func headerValue(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

func (e *EmailAdapter) messageIDDomain() string {
	if i := strings.LastIndex(e.from, "@"); i >= 0 {
		if domain := strings.Trim(e.from[i+1:], "<> \t\r\n"); domain != "" {
			return domain
		}
	}
	return e.host
}

func (e *EmailAdapter) send(ctx context.Context, recipient string, message []byte) error {
	client, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(e.from); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (e *EmailAdapter) connect(ctx context.Context) (*smtp.Client, error) {
	address := net.JoinHostPort(e.host, fmt.Sprintf("%d", e.port))
	dialer := &net.Dialer{Timeout: e.timeout}

	var (
		conn net.Conn
		err  error
	)
	if e.security == smtpSecurityTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: e.host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(e.timeout))

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if e.security == smtpSecurityStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("smtp server does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	if e.username != "" {
		if err := client.Auth(smtp.PlainAuth("", e.username, e.password, e.host)); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}
