// Package email formats match notifications and sends them over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/matchmaker/internal/notify"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// FormatMatch builds the subject and plain-text body for a match.
func FormatMatch(p notify.Payload) (subject, body string) {
	subject = fmt.Sprintf("%s: %s (%d%%)", p.Breakdown.Label, displayTitle(p), p.Breakdown.Overall)

	var buf bytes.Buffer

	if p.InvestorName != "" {
		fmt.Fprintf(&buf, "Hi %s,\n\n", p.InvestorName)
	} else {
		fmt.Fprintf(&buf, "Hi,\n\n")
	}
	fmt.Fprintf(&buf, "A property matching your preferences is available:\n\n")
	fmt.Fprintf(&buf, "%s\n", displayTitle(p))

	var details []string
	if !p.Price.IsZero() {
		details = append(details, formatPrice(p.Price))
	}
	if p.Bedrooms > 0 {
		details = append(details, fmt.Sprintf("%d bed", p.Bedrooms))
	}
	if p.PropertyType != "" {
		details = append(details, p.PropertyType)
	}
	if p.Location != "" {
		details = append(details, p.Location)
	}
	if len(details) > 0 {
		fmt.Fprintf(&buf, "   %s\n", strings.Join(details, " | "))
	}

	b := p.Breakdown
	fmt.Fprintf(&buf, "\n%s, %d%% overall\n", b.Label, b.Overall)
	fmt.Fprintf(&buf, "   Location: %d%%\n", b.Location)
	fmt.Fprintf(&buf, "   Price:    %d%%\n", b.Price)
	fmt.Fprintf(&buf, "   Bedrooms: %d%%\n", b.Bedrooms)
	fmt.Fprintf(&buf, "   Type:     %d%%\n", b.Type)

	fmt.Fprintf(&buf, "\nReference: %s\n", p.PropertyID)

	return subject, buf.String()
}

// displayTitle returns the listing title on a single line, falling back to
// the property ID.
func displayTitle(p notify.Payload) string {
	if title := strings.Join(strings.Fields(p.Title), " "); title != "" {
		return title
	}
	return p.PropertyID
}

// Dispatcher sends match notifications by email.
type Dispatcher struct {
	cfg  SMTPConfig
	send func(ctx context.Context, cfg SMTPConfig, to []string, subject, body string) error
}

// NewDispatcher creates an SMTP dispatcher.
func NewDispatcher(cfg SMTPConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg, send: Send}
}

// Dispatch emails the payload to the investor.
func (d *Dispatcher) Dispatch(ctx context.Context, p notify.Payload) error {
	if p.InvestorEmail == "" {
		return fmt.Errorf("investor %s has no email address", p.InvestorID)
	}
	subject, body := FormatMatch(p)
	return d.send(ctx, d.cfg, []string{p.InvestorEmail}, subject, body)
}

// Send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func Send(ctx context.Context, cfg SMTPConfig, to []string, subject, body string) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	msg, err := buildMessage(cfg.From, to, subject, body)
	if err != nil {
		return err
	}

	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(ctx, cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

// buildMessage assembles the raw message. Header values must not contain
// line breaks; a non-ASCII subject is Q-encoded.
func buildMessage(from string, to []string, subject, body string) (string, error) {
	headers := append([]string{from, subject}, to...)
	for _, h := range headers {
		if strings.ContainsAny(h, "\r\n") {
			return "", errors.New("email header contains a line break")
		}
	}

	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		from,
		strings.Join(to, ", "),
		mime.QEncoding.Encode("utf-8", subject),
		body,
	), nil
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(ctx context.Context, cfg SMTPConfig, addr string, to []string, msg string) (err error) {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: cfg.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// formatPrice renders a price with thousands separators, dropping the
// fraction when it is whole.
func formatPrice(d decimal.Decimal) string {
	places := int32(2)
	if d.Equal(d.Truncate(0)) {
		places = 0
	}
	s := d.StringFixed(places)

	whole, frac, hasFrac := strings.Cut(s, ".")
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")

	var parts []string
	for len(whole) > 3 {
		parts = append([]string{whole[len(whole)-3:]}, parts...)
		whole = whole[:len(whole)-3]
	}
	parts = append([]string{whole}, parts...)

	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	if hasFrac {
		out += "." + frac
	}
	return out
}
