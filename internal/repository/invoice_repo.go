package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

const invoiceColumns = `id, transaction_id, plate, toll_point_id, tier, base_cents, penalty_cents,
	total_cents, currency, status, concept, issued_at, created_at, payer_name, payer_plate, payer_email`

type InvoiceRepo struct {
	db *sql.DB
}

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

// Insert appends an invoice. A second invoice for the same transaction (or a
// reused id) yields domain.ErrDuplicate.
func (r *InvoiceRepo) Insert(ctx context.Context, inv *domain.Invoice) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.TransactionID, inv.Plate, inv.TollPointID, int(inv.Tier),
		currency.ToMinorUnits(inv.BaseAmount), currency.ToMinorUnits(inv.Penalty), currency.ToMinorUnits(inv.Total),
		inv.Currency, string(inv.Status), inv.Concept, formatTime(inv.IssuedAt), formatTime(inv.CreatedAt),
		inv.Payer.Name, inv.Payer.Plate, inv.Payer.Email,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("invoice for %s: %w", inv.TransactionID, domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByTransactionID(ctx context.Context, txnID string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE transaction_id = ?", txnID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice for %s: %w", txnID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice for %s: %w", txnID, err)
	}
	return inv, nil
}

type InvoiceFilter struct {
	Plate  string
	Status domain.InvoiceStatus
	Limit  int
}

// ListByPlate returns the plate's invoices, newest first.
func (r *InvoiceRepo) ListByPlate(ctx context.Context, f InvoiceFilter) ([]domain.Invoice, error) {
	clauses := []string{"plate = ?"}
	args := []any{f.Plate}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	args = append(args, normalizeLimit(f.Limit))

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE "+strings.Join(clauses, " AND ")+
			" ORDER BY created_at DESC, rowid DESC LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	invoices := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var tier int
	var status, issuedAt, createdAt string
	var baseCents, penaltyCents, totalCents int64

	err := row.Scan(
		&inv.ID, &inv.TransactionID, &inv.Plate, &inv.TollPointID, &tier, &baseCents, &penaltyCents,
		&totalCents, &inv.Currency, &status, &inv.Concept, &issuedAt, &createdAt,
		&inv.Payer.Name, &inv.Payer.Plate, &inv.Payer.Email,
	)
	if err != nil {
		return nil, err
	}

	inv.Tier = domain.Tier(tier)
	inv.BaseAmount = currency.FromMinorUnits(baseCents)
	inv.Penalty = currency.FromMinorUnits(penaltyCents)
	inv.Total = currency.FromMinorUnits(totalCents)
	inv.Status = domain.InvoiceStatus(status)
	inv.IssuedAt = parseTime(issuedAt)
	inv.CreatedAt = parseTime(createdAt)
	return &inv, nil
}
