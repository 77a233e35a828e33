package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a forward move.
// Only pending transactions may change, and never back to pending.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && (next == PaymentCompleted || next == PaymentFailed)
}

type Transaction struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	Plate         string          `json:"plate"`
	TollPointID   string          `json:"toll_point_id"`
	TagID         string          `json:"tag_id,omitempty"`
	Tier          Tier            `json:"tier"`
	BaseFare      decimal.Decimal `json:"base_fare"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	FinalFare     decimal.Decimal `json:"final_fare"`
	Currency      string          `json:"currency"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CrossedAt     time.Time       `json:"crossed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}
