package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/domain"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Request carries everything a message needs. Profile is nil for vehicles
// that are not in the directory.
type Request struct {
	Tier     domain.Tier
	Plate    string
	TollName string
	Profile  *domain.UserProfile
	Invoice  *domain.Invoice
	Balance  *domain.BalanceUpdate
}

// Notifier picks the message for a settled crossing and hands it to a
// sender.
type Notifier struct {
	email      EmailSender
	sms        SMSSender
	lowBalance decimal.Decimal
	logger     *slog.Logger
	now        func() time.Time
}

func New(email EmailSender, sms SMSSender, lowBalance decimal.Decimal, logger *slog.Logger) *Notifier {
	return &Notifier{
		email:      email,
		sms:        sms,
		lowBalance: lowBalance,
		logger:     logger.With("component", "notifier"),
		now:        time.Now,
	}
}

// Notify sends at most one message. Tier 1 owners with contact details get
// an invitation (email preferred over SMS), Tier 2 owners with email get a
// charge notice and Tier 3 gets nothing. A sender failure is reported in the
// outcome and as the returned error.
func (n *Notifier) Notify(ctx context.Context, req Request) (domain.NotificationOutcome, error) {
	out := domain.NotificationOutcome{At: n.now().UTC()}
	if req.Invoice == nil {
		out.Message = "no invoice to notify"
		return out, nil
	}

	email, phone := contact(req.Profile)

	switch req.Tier {
	case domain.TierUnregistered:
		switch {
		case email != "":
			subject, body := invitationEmail(req)
			return n.sendEmail(ctx, out, domain.NotifyInvitationEmail, email, subject, body)
		case phone != "":
			return n.sendSMS(ctx, out, domain.NotifyInvitationSMS, phone, invitationSMS(req))
		default:
			out.Message = "owner has no email or phone on file"
		}

	case domain.TierRegistered:
		if email == "" {
			out.Message = "registered owner has no email on file"
			break
		}
		subject, body := chargeEmail(req, n.lowBalance)
		return n.sendEmail(ctx, out, domain.NotifyCharge, email, subject, body)

	default:
		out.Message = fmt.Sprintf("tier %d is not notified", req.Tier)
	}

	n.logger.Debug("no notification sent", "plate", req.Plate, "reason", out.Message)
	return out, nil
}

func (n *Notifier) sendEmail(ctx context.Context, out domain.NotificationOutcome, typ domain.NotificationType, to, subject, body string) (domain.NotificationOutcome, error) {
	out.Type = typ
	out.Channel = "email"
	out.Recipient = to
	out.Subject = subject
	if err := n.email.SendEmail(ctx, to, subject, body); err != nil {
		out.Error = err.Error()
		out.Message = "email delivery failed"
		return out, fmt.Errorf("send %s to %s: %w", typ, to, err)
	}
	out.Sent = true
	out.Message = "email sent to " + to
	return out, nil
}

func (n *Notifier) sendSMS(ctx context.Context, out domain.NotificationOutcome, typ domain.NotificationType, to, body string) (domain.NotificationOutcome, error) {
	out.Type = typ
	out.Channel = "sms"
	out.Recipient = to
	if err := n.sms.SendSMS(ctx, to, body); err != nil {
		out.Error = err.Error()
		out.Message = "sms delivery failed"
		return out, fmt.Errorf("send %s to %s: %w", typ, to, err)
	}
	out.Sent = true
	out.Message = "sms sent to " + to
	return out, nil
}

// contact ignores the "N/A" placeholder the import tooling writes for
// missing values.
func contact(p *domain.UserProfile) (email, phone string) {
	if p == nil {
		return "", ""
	}
	if p.Email != "N/A" {
		email = p.Email
	}
	if p.Phone != "N/A" {
		phone = p.Phone
	}
	return email, phone
}
