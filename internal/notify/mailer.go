// Package notify delivers brew notifications over SMTP.
// It implements the service.Notifier interface consumed by the scheduler.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kettleworks/brewbot/internal/domain"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Domain is appended to a brewer's short id to form their address,
	// e.g. short id "abc123" + domain "example.com" → "abc123@example.com".
	Domain string
}

// Configured reports whether enough settings are present to deliver mail.
func (c Config) Configured() bool {
	return c.Host != "" && c.From != "" && c.Domain != ""
}

// Mailer sends brew notifications via SMTP. Delivery failures are retried
// with exponential backoff; there is no exactly-once guarantee and callers
// are expected to log-and-continue on a final failure.
type Mailer struct {
	cfg    Config
	logger *slog.Logger

	// sendMail is swapped out in tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer constructs a Mailer from the given config.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

// Send notifies every brewer on a fired brew who was picked to make it.
func (m *Mailer) Send(ctx context.Context, brew domain.Brew) error {
	if brew.Brewer == nil {
		return fmt.Errorf("notify.Mailer.Send: brew %s has no chosen brewer", brew.ID)
	}

	to, err := m.addresses(brew.Brewers)
	if err != nil {
		return fmt.Errorf("notify.Mailer.Send: %w", err)
	}

	subject := fmt.Sprintf("Brew time in %s: %s is making the round", brew.Location, brew.Brewer.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "%s drew the short straw for the %s round due %s.\r\n\r\n",
		brew.Brewer.Name, brew.Location, brew.DueAt.Format(time.Kitchen))
	b.WriteString("Orders:\r\n")
	for _, br := range brew.Brewers {
		fmt.Fprintf(&b, "  - %s: %s", br.Name, orderLine(br))
		b.WriteString("\r\n")
	}

	if err := m.deliver(ctx, to, subject, b.String()); err != nil {
		return fmt.Errorf("notify.Mailer.Send: %w", err)
	}
	return nil
}

// SendAlert tells everyone who brewed at this location recently that a new
// round just opened and when it fires.
func (m *Mailer) SendAlert(ctx context.Context, roster domain.HistoricalRoster, location string, lead time.Duration) error {
	if len(roster) == 0 {
		return nil
	}

	to := make([]string, 0, len(roster))
	for short := range roster {
		to = append(to, short+"@"+m.cfg.Domain)
	}

	subject := fmt.Sprintf("A brew round just opened in %s", location)
	body := fmt.Sprintf("A new round for %s fires in %s. Join now to get a cup.\r\n",
		location, lead.Round(time.Second))

	if err := m.deliver(ctx, to, subject, body); err != nil {
		return fmt.Errorf("notify.Mailer.SendAlert: %w", err)
	}
	return nil
}

// deliver sends one message, retrying transient SMTP failures with
// exponential backoff before giving up.
func (m *Mailer) deliver(ctx context.Context, to []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, strings.Join(to, ", "), subject, body)

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.sendMail(addr, auth, m.cfg.From, to, []byte(msg)); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// addresses maps roster entries to mail addresses via their short ids.
func (m *Mailer) addresses(brewers []domain.Brewer) ([]string, error) {
	out := make([]string, 0, len(brewers))
	for _, br := range brewers {
		short, err := domain.ShortID(br.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, short+"@"+m.cfg.Domain)
	}
	return out, nil
}

// orderLine renders a brewer's drink preferences for the notification body.
func orderLine(b domain.Brewer) string {
	parts := []string{}
	if b.Drink != "" {
		parts = append(parts, b.Drink)
	}
	if b.Milk != "" {
		parts = append(parts, "milk: "+b.Milk)
	}
	if b.Sugars != "" {
		parts = append(parts, b.Sugars+" sugar(s)")
	}
	if b.Comments != "" {
		parts = append(parts, "("+b.Comments+")")
	}
	if len(parts) == 0 {
		return "no preferences given"
	}
	return strings.Join(parts, ", ")
}
