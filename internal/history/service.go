package history

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/repository"
)

type InvoiceLister interface {
	ListByPlate(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error)
}

type TransactionLister interface {
	ListByPlate(ctx context.Context, f repository.TransactionFilter) ([]domain.Transaction, error)
}

type InvoiceSummary struct {
	TotalInvoices int             `json:"total_invoices"`
	Pending       int             `json:"pending"`
	Paid          int             `json:"paid"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalPending  decimal.Decimal `json:"total_pending"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
}

type InvoiceHistory struct {
	Plate    string           `json:"plate"`
	Invoices []domain.Invoice `json:"invoices"`
	Summary  InvoiceSummary   `json:"summary"`
}

type TransactionSummary struct {
	TotalTransactions int             `json:"total_transactions"`
	Completed         int             `json:"completed"`
	Pending           int             `json:"pending"`
	Failed            int             `json:"failed"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

type TransactionHistory struct {
	Plate        string               `json:"plate"`
	Transactions []domain.Transaction `json:"transactions"`
	Summary      TransactionSummary   `json:"summary"`
}

// Service answers per-plate history queries. Summaries cover the returned
// page only.
type Service struct {
	invoices     InvoiceLister
	transactions TransactionLister
}

func NewService(invoices InvoiceLister, transactions TransactionLister) *Service {
	return &Service{invoices: invoices, transactions: transactions}
}

func (s *Service) Invoices(ctx context.Context, plate string, status domain.InvoiceStatus, limit int) (*InvoiceHistory, error) {
	plate = domain.NormalizePlate(plate)
	if plate == "" {
		return nil, domain.NewValidationError("plate", "is required")
	}
	switch status {
	case "", domain.InvoicePending, domain.InvoicePaid:
	default:
		return nil, domain.NewValidationError("status", "must be pendiente or pagada")
	}

	invoices, err := s.invoices.ListByPlate(ctx, repository.InvoiceFilter{Plate: plate, Status: status, Limit: limit})
	if err != nil {
		return nil, err
	}

	summary := InvoiceSummary{TotalInvoices: len(invoices)}
	for _, inv := range invoices {
		summary.TotalAmount = summary.TotalAmount.Add(inv.Total)
		switch inv.Status {
		case domain.InvoicePending:
			summary.Pending++
			summary.TotalPending = summary.TotalPending.Add(inv.Total)
		case domain.InvoicePaid:
			summary.Paid++
			summary.TotalPaid = summary.TotalPaid.Add(inv.Total)
		}
	}
	return &InvoiceHistory{Plate: plate, Invoices: invoices, Summary: summary}, nil
}

// Transactions lists crossings between from and to, both optional and
// inclusive. TotalAmount sums the fares of completed transactions, which is
// what was actually charged.
func (s *Service) Transactions(ctx context.Context, plate string, from, to *time.Time, limit int) (*TransactionHistory, error) {
	plate = domain.NormalizePlate(plate)
	if plate == "" {
		return nil, domain.NewValidationError("plate", "is required")
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, domain.NewValidationError("from", "must not be after to")
	}

	txns, err := s.transactions.ListByPlate(ctx, repository.TransactionFilter{Plate: plate, From: from, To: to, Limit: limit})
	if err != nil {
		return nil, err
	}

	summary := TransactionSummary{TotalTransactions: len(txns)}
	for _, tx := range txns {
		switch tx.PaymentStatus {
		case domain.PaymentCompleted:
			summary.Completed++
			summary.TotalAmount = summary.TotalAmount.Add(tx.FinalFare)
		case domain.PaymentPending:
			summary.Pending++
		case domain.PaymentFailed:
			summary.Failed++
		}
	}
	return &TransactionHistory{Plate: plate, Transactions: txns, Summary: summary}, nil
}
