// Package email delivers over-estimate alerts by SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/tasktimer/internal/port/notifier"
)

const providerName = "email"

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	To       string
	Password string
}

// Notifier sends alerts as plain-text mail.
type Notifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg, sendMail: smtp.SendMail}
}

// Name returns the provider identifier.
func (n *Notifier) Name() string { return providerName }

// Notify mails the alert to the configured recipient.
func (n *Notifier) Notify(ctx context.Context, alert notifier.Alert) error {
	if n.cfg.Host == "" || n.cfg.To == "" {
		return notifier.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.sendMail(addr, auth, n.cfg.From, []string{n.cfg.To}, n.message(&alert)); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}

func (n *Notifier) message(a *notifier.Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(a.Title()))
	fmt.Fprintf(&b, "Date: %s\r\n", a.At.Format(time.RFC1123Z))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\ntask #%d, %s\r\n", a.Summary(), a.TaskID, a.Kind)
	return []byte(b.String())
}

// headerSafe strips line breaks so a task name cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
