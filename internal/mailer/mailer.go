package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/domain"
)

const (
	confirmSubject = "Confirm your email"
	confirmPath    = "/api/auth/confirmed_email/"
)

//go:embed templates/*.html
var templatesFS embed.FS

var confirmTemplate = template.Must(template.ParseFS(templatesFS, "templates/confirm_email.html"))

// Mailer delivers confirmation emails.
type Mailer interface {
	SendConfirmation(ctx context.Context, msg domain.ConfirmationMessage) error
}

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer renders the confirmation template and sends it over SMTP,
// retrying transport failures with exponential backoff.
type SMTPMailer struct {
	sender     Sender
	from       string
	fromName   string
	maxRetries uint64
	baseDelay  time.Duration
	logger     *zap.Logger
}

// NewSMTPMailer builds a mailer from configuration. Port 465 uses implicit TLS.
func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	return newSMTPMailer(dialer, cfg, logger)
}

func newSMTPMailer(sender Sender, cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &SMTPMailer{
		sender:     sender,
		from:       cfg.From,
		fromName:   cfg.FromName,
		maxRetries: uint64(retries),
		baseDelay:  500 * time.Millisecond,
		logger:     logger,
	}
}

// SendConfirmation renders and sends the confirmation email for msg.
func (m *SMTPMailer) SendConfirmation(ctx context.Context, msg domain.ConfirmationMessage) error {
	body, err := RenderConfirmation(msg)
	if err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetAddressHeader("From", m.from, m.fromName)
	message.SetHeader("To", msg.Email)
	message.SetHeader("Subject", confirmSubject)
	message.SetBody("text/html", body)

	attempt := 0
	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.baseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := m.sender.DialAndSend(message); err != nil {
			m.logger.Warn("send confirmation email failed",
				zap.String("message_id", msg.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

// ConfirmationLink builds the URL a user follows to confirm their address.
func ConfirmationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + confirmPath + url.PathEscape(token)
}

// RenderConfirmation renders the html body for msg.
func RenderConfirmation(msg domain.ConfirmationMessage) (string, error) {
	var buf bytes.Buffer
	err := confirmTemplate.Execute(&buf, struct {
		Username string
		Link     string
	}{
		Username: msg.Username,
		Link:     ConfirmationLink(msg.BaseURL, msg.Token),
	})
	if err != nil {
		return "", fmt.Errorf("render confirmation email: %w", err)
	}
	return buf.String(), nil
}

// LogMailer drops messages after logging the recipient. Used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) SendConfirmation(_ context.Context, msg domain.ConfirmationMessage) error {
	l.logger.Info("smtp not configured; confirmation email skipped",
		zap.String("message_id", msg.ID),
		zap.String("email", msg.Email),
	)
	return nil
}
