package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// MailSender is satisfied by *gomail.Dialer
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// VerificationMail is everything the verification message needs
type VerificationMail struct {
	Email         string
	FirstName     string
	Token         string
	ScreenshotURL string
	ExpiresAt     time.Time
}

type Mailer struct {
	sender   MailSender
	from     string
	fromName string
	baseURL  string
}

// NewMailer creates a mailer. A nil sender disables delivery, messages are
// only logged then
func NewMailer(sender MailSender, from, fromName, baseURL string) *Mailer {
	return &Mailer{
		sender:   sender,
		from:     from,
		fromName: fromName,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// ReportLink is the page that redeems token, <base-url>/report/<token>
func (m *Mailer) ReportLink(token string) string {
	return m.baseURL + "/report/" + url.PathEscape(token)
}

func (m *Mailer) SendVerification(ctx context.Context, v VerificationMail) error {
	if v.Email == "" {
		return errors.New("no recipient provided")
	}

	if strings.EqualFold(v.Email, m.from) {
		return errors.New("invalid email address")
	}

	if v.Token == "" {
		return errors.New("no verification token provided")
	}

	link := m.ReportLink(v.Token)

	name := v.FirstName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(name))
	b.WriteString("<p>Your website analysis is ready. Confirm your email address to open the full report.</p>")
	if v.ScreenshotURL != "" {
		fmt.Fprintf(&b, "<p><img src='%s' alt='Screenshot of your site' width='560'></p>", html.EscapeString(v.ScreenshotURL))
	}
	fmt.Fprintf(&b, "<p><a href='%s'>View my report</a></p>", html.EscapeString(link))
	if !v.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "<p>This link expires on %s.</p>", v.ExpiresAt.UTC().Format("2 Jan 2006 15:04 MST"))
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", v.Email)
	msg.SetHeader("Subject", "Your website report is ready")
	msg.SetBody("text/plain", fmt.Sprintf("Hi %s,\n\nOpen your report here: %s\n", name, link))
	msg.AddAlternative("text/html", b.String())

	return m.send(ctx, msg, v.Email)
}

func (m *Mailer) SendBookingConfirmation(ctx context.Context, b *model.BookingDraft, timeZone string) error {
	if b == nil || b.Email == "" {
		return errors.New("booking has no email address")
	}

	if b.ScheduledStart == nil {
		return errors.New("booking is not scheduled")
	}

	when := *b.ScheduledStart
	if loc, err := time.LoadLocation(timeZone); err == nil {
		when = when.In(loc)
	}
	whenStr := when.Format("Monday 2 January 2006, 3:04 PM")

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", b.Email)
	msg.SetHeader("Subject", "Your installation is booked")
	msg.SetBody("text/plain", fmt.Sprintf("Hi %s,\n\nYour installation for order %s is booked for %s.\n", b.FirstName, b.OrderNumber, whenStr))
	msg.AddAlternative("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Your installation for order <strong>%s</strong> is booked for <strong>%s</strong>.</p><p>%s</p>",
		html.EscapeString(b.FirstName),
		html.EscapeString(b.OrderNumber),
		html.EscapeString(whenStr),
		html.EscapeString(strings.Join([]string{b.AddressLine, b.Suburb, b.City}, ", ")),
	))

	return m.send(ctx, msg, b.Email)
}

func (m *Mailer) send(ctx context.Context, msg *gomail.Message, to string) error {
	if m.sender == nil {
		zap.L().Debug("Mail delivery disabled, dropping message",
			zap.String("to", to),
			zap.Strings("subject", msg.GetHeader("Subject")))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail, %w", err)
	}

	return nil
}
