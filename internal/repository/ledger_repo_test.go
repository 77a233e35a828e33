package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guatepass/tolling/internal/domain"
)

func newTransaction(id, plate string, crossedAt time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:            id,
		EventID:       "evt-" + id,
		Plate:         plate,
		TollPointID:   "carretera_sur",
		Tier:          domain.TierUnregistered,
		BaseFare:      money("12.00"),
		Multiplier:    money("1.50"),
		FinalFare:     money("18.00"),
		Currency:      "GTQ",
		PaymentStatus: domain.PaymentPending,
		CrossedAt:     crossedAt,
		CreatedAt:     crossedAt,
	}
}

func TestTransactionRepoInsertIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepo(newTestDB(t))
	now := time.Date(2025, 11, 7, 14, 30, 0, 0, time.UTC)

	if err := repo.Insert(ctx, newTransaction("TXN-1", "P-1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := repo.Insert(ctx, newTransaction("TXN-1", "P-1", now))
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := repo.GetByID(ctx, "TXN-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.FinalFare.Equal(money("18")) || !got.Multiplier.Equal(money("1.5")) {
		t.Fatalf("unexpected amounts: %+v", got)
	}
	if !got.CrossedAt.Equal(now) {
		t.Fatalf("expected crossed_at %s, got %s", now, got.CrossedAt)
	}
}

func TestTransactionRepoStatusMovesForwardOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepo(newTestDB(t))
	now := time.Now()
	if err := repo.Insert(ctx, newTransaction("TXN-1", "P-1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed, err := repo.MarkStatus(ctx, "TXN-1", domain.PaymentCompleted, now)
	if err != nil || !changed {
		t.Fatalf("expected first transition, got %v %v", changed, err)
	}
	changed, err = repo.MarkStatus(ctx, "TXN-1", domain.PaymentFailed, now)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if changed {
		t.Fatal("completed transaction must not move to failed")
	}
	if _, err := repo.MarkStatus(ctx, "TXN-1", domain.PaymentPending, now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for backwards move, got %v", err)
	}

	got, _ := repo.GetByID(ctx, "TXN-1")
	if got.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected completed, got %s", got.PaymentStatus)
	}
}

func TestTransactionRepoListByPlate(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepo(newTestDB(t))
	base := time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"TXN-A", "TXN-B", "TXN-C"} {
		if err := repo.Insert(ctx, newTransaction(id, "P-1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := repo.Insert(ctx, newTransaction("TXN-OTHER", "P-2", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	txns, err := repo.ListByPlate(ctx, TransactionFilter{Plate: "P-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
	if txns[0].ID != "TXN-C" || txns[2].ID != "TXN-A" {
		t.Fatalf("expected newest first, got %s..%s", txns[0].ID, txns[2].ID)
	}

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	txns, err = repo.ListByPlate(ctx, TransactionFilter{Plate: "P-1", From: &from, To: &to})
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(txns) != 1 || txns[0].ID != "TXN-B" {
		t.Fatalf("expected only TXN-B in range, got %+v", txns)
	}

	txns, _ = repo.ListByPlate(ctx, TransactionFilter{Plate: "P-1", Limit: 2})
	if len(txns) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(txns))
	}
}

func TestInvoiceRepoInsertAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	txRepo := NewTransactionRepo(db)
	repo := NewInvoiceRepo(db)
	base := time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC)

	statuses := []domain.InvoiceStatus{domain.InvoicePending, domain.InvoicePaid, domain.InvoicePending}
	for i, status := range statuses {
		txnID := []string{"TXN-A", "TXN-B", "TXN-C"}[i]
		if err := txRepo.Insert(ctx, newTransaction(txnID, "P-1", base)); err != nil {
			t.Fatalf("insert txn: %v", err)
		}
		inv := &domain.Invoice{
			ID:            "FAC-" + txnID,
			TransactionID: txnID,
			Plate:         "P-1",
			TollPointID:   "carretera_sur",
			Tier:          domain.TierUnregistered,
			BaseAmount:    money("18.00"),
			Penalty:       money("9.00"),
			Total:         money("27.00"),
			Currency:      "GTQ",
			Status:        status,
			Concept:       "Paso por peaje - carretera_sur",
			IssuedAt:      base,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			Payer:         domain.Payer{Name: "Usuario Desconocido", Plate: "P-1", Email: "N/A"},
		}
		if err := repo.Insert(ctx, inv); err != nil {
			t.Fatalf("insert invoice: %v", err)
		}
	}

	dup := &domain.Invoice{ID: "FAC-OTHER", TransactionID: "TXN-A", Plate: "P-1", TollPointID: "x", Currency: "GTQ",
		Status: domain.InvoicePaid, IssuedAt: base, CreatedAt: base}
	if err := repo.Insert(ctx, dup); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected one invoice per transaction, got %v", err)
	}

	all, err := repo.ListByPlate(ctx, InvoiceFilter{Plate: "P-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].TransactionID != "TXN-C" {
		t.Fatalf("expected 3 invoices newest first, got %+v", all)
	}
	if !all[0].Total.Equal(money("27")) || all[0].Payer.Email != "N/A" {
		t.Fatalf("unexpected invoice contents: %+v", all[0])
	}

	pending, err := repo.ListByPlate(ctx, InvoiceFilter{Plate: "P-1", Status: domain.InvoicePending})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending invoices, got %d", len(pending))
	}

	got, err := repo.GetByTransactionID(ctx, "TXN-B")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.InvoicePaid {
		t.Fatalf("expected pagada, got %s", got.Status)
	}
}
