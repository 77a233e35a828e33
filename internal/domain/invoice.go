package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pendiente"
	InvoicePaid    InvoiceStatus = "pagada"
)

// Payer is a copy of the owner's details at issuance time.
type Payer struct {
	Name  string `json:"name"`
	Plate string `json:"plate"`
	Email string `json:"email"`
}

type Invoice struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Plate         string          `json:"plate"`
	TollPointID   string          `json:"toll_point_id"`
	Tier          Tier            `json:"tier"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	Penalty       decimal.Decimal `json:"penalty"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Status        InvoiceStatus   `json:"status"`
	Concept       string          `json:"concept"`
	IssuedAt      time.Time       `json:"issued_at"`
	CreatedAt     time.Time       `json:"created_at"`
	Payer         Payer           `json:"payer"`
}
