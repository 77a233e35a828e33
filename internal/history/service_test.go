package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/repository"
)

type stubInvoices struct {
	rows   []domain.Invoice
	filter repository.InvoiceFilter
}

func (s *stubInvoices) ListByPlate(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	s.filter = f
	return s.rows, nil
}

type stubTransactions struct {
	rows   []domain.Transaction
	filter repository.TransactionFilter
}

func (s *stubTransactions) ListByPlate(ctx context.Context, f repository.TransactionFilter) ([]domain.Transaction, error) {
	s.filter = f
	return s.rows, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInvoiceSummary(t *testing.T) {
	inv := &stubInvoices{rows: []domain.Invoice{
		{ID: "FAC-1", Status: domain.InvoicePending, Total: d("27.00")},
		{ID: "FAC-2", Status: domain.InvoicePaid, Total: d("18.00")},
		{ID: "FAC-3", Status: domain.InvoicePaid, Total: d("15.00")},
	}}
	svc := NewService(inv, &stubTransactions{})

	h, err := svc.Invoices(context.Background(), " p-1 ", "", 10)
	if err != nil {
		t.Fatalf("invoices: %v", err)
	}
	if inv.filter.Plate != "P-1" || inv.filter.Limit != 10 {
		t.Fatalf("unexpected filter %+v", inv.filter)
	}
	s := h.Summary
	if s.TotalInvoices != 3 || s.Pending != 1 || s.Paid != 2 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if !s.TotalAmount.Equal(d("60")) || !s.TotalPending.Equal(d("27")) || !s.TotalPaid.Equal(d("33")) {
		t.Fatalf("unexpected totals %+v", s)
	}

	if _, err := svc.Invoices(context.Background(), "P-1", "cancelada", 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestTransactionSummary(t *testing.T) {
	txns := &stubTransactions{rows: []domain.Transaction{
		{ID: "TXN-1", PaymentStatus: domain.PaymentCompleted, FinalFare: d("18.00")},
		{ID: "TXN-2", PaymentStatus: domain.PaymentPending, FinalFare: d("18.00")},
		{ID: "TXN-3", PaymentStatus: domain.PaymentFailed, FinalFare: d("15.00")},
		{ID: "TXN-4", PaymentStatus: domain.PaymentCompleted, FinalFare: d("12.00")},
	}}
	svc := NewService(&stubInvoices{}, txns)

	from := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	h, err := svc.Transactions(context.Background(), "P-1", &from, nil, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if txns.filter.From == nil || !txns.filter.From.Equal(from) {
		t.Fatal("from bound must reach the repository")
	}
	s := h.Summary
	if s.TotalTransactions != 4 || s.Completed != 2 || s.Pending != 1 || s.Failed != 1 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if !s.TotalAmount.Equal(d("30")) {
		t.Fatalf("expected 30.00 charged, got %s", s.TotalAmount)
	}

	to := from.Add(-time.Hour)
	if _, err := svc.Transactions(context.Background(), "P-1", &from, &to, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}
