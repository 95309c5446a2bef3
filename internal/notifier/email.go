package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"QuoteWatch/internal/model"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSink sends HTML mail over SMTP with STARTTLS.
type EmailSink struct {
	cfg  EmailConfig
	log  zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewEmailSink(cfg EmailConfig, logger zerolog.Logger) *EmailSink {
	return &EmailSink{
		cfg:  cfg,
		log:  logger.With().Str("component", "email").Logger(),
		send: smtp.SendMail,
		now:  time.Now,
	}
}

// Send is a no-op when the sink is disabled.
func (e *EmailSink) Send(ctx context.Context, recipient, subject, bodyHTML string) error {
	if !e.cfg.Enabled {
		return nil
	}
	if recipient == "" {
		return fmt.Errorf("%w: email recipient is empty", model.ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(e.cfg.From, recipient, subject, bodyHTML, e.now())
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	if err := e.send(addr, auth, e.cfg.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("%w: smtp %s: %v", model.ErrFetch, addr, err)
	}
	e.log.Info().Str("to", recipient).Str("subject", subject).Msg("email sent")
	return nil
}

var headerBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// headerValue keeps a value on a single header line.
func headerValue(v string) string { return headerBreaks.Replace(v) }

func buildMessage(from, to, subject, bodyHTML string, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(from) + "\r\n")
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + headerValue(subject) + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(bodyHTML)
	return []byte(b.String())
}
