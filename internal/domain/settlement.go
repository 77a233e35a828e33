package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DebitReason string

const (
	DebitApplied           DebitReason = "debited"
	DebitInsufficientFunds DebitReason = "insufficient_funds"
	DebitNotApplicable     DebitReason = "not_applicable"
	DebitUserNotFound      DebitReason = "not_found"
)

// BalanceUpdate reports what the debit step did. It is never persisted on its
// own.
type BalanceUpdate struct {
	Updated         bool             `json:"updated"`
	Reason          DebitReason      `json:"reason"`
	PreviousBalance *decimal.Decimal `json:"previous_balance,omitempty"`
	NewBalance      *decimal.Decimal `json:"new_balance,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	RequiresTopUp   bool             `json:"requires_top_up"`
}

// BalanceDebit is the journal row written with every applied debit. The
// reference is the transaction id.
type BalanceDebit struct {
	Reference       string          `json:"reference"`
	Plate           string          `json:"plate"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	CreatedAt       time.Time       `json:"created_at"`
}

type NotificationType string

const (
	NotifyInvitationEmail NotificationType = "invitation_email"
	NotifyInvitationSMS   NotificationType = "invitation_sms"
	NotifyCharge          NotificationType = "charge_notification"
)

type NotificationOutcome struct {
	Sent      bool             `json:"sent"`
	Type      NotificationType `json:"type,omitempty"`
	Channel   string           `json:"channel,omitempty"`
	Recipient string           `json:"recipient,omitempty"`
	Subject   string           `json:"subject,omitempty"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
}
