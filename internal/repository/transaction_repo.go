package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

const transactionColumns = `id, event_id, plate, toll_point_id, tag_id, tier, base_fare_cents,
	multiplier, final_fare_cents, currency, payment_status, crossed_at, created_at, updated_at`

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Insert appends a transaction. An existing id yields domain.ErrDuplicate;
// rows are never overwritten.
func (r *TransactionRepo) Insert(ctx context.Context, tx *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		tx.ID, tx.EventID, tx.Plate, tx.TollPointID, nullableString(tx.TagID), int(tx.Tier),
		currency.ToMinorUnits(tx.BaseFare), tx.Multiplier.String(), currency.ToMinorUnits(tx.FinalFare),
		tx.Currency, string(tx.PaymentStatus), formatTime(tx.CrossedAt), formatTime(tx.CreatedAt),
		formatNullableTime(tx.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// MarkStatus moves a pending transaction to status. It reports false when the
// transaction had already left pending; statuses never move backwards.
func (r *TransactionRepo) MarkStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) (bool, error) {
	if !domain.PaymentPending.CanTransitionTo(status) {
		return false, domain.NewValidationError("payment_status", "cannot move to %q", status)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET payment_status = ?, updated_at = ? WHERE id = ? AND payment_status = ?",
		string(status), formatTime(at), id, string(domain.PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("mark transaction %s: %w", id, err)
	}
	ra, _ := res.RowsAffected()
	return ra == 1, nil
}

type TransactionFilter struct {
	Plate string
	From  *time.Time
	To    *time.Time
	Limit int
}

// ListByPlate returns the plate's transactions, newest crossing first.
func (r *TransactionRepo) ListByPlate(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	where, args := buildTransactionWhere(f)
	args = append(args, normalizeLimit(f.Limit))

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY crossed_at DESC, rowid DESC LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *tx)
	}
	return txns, rows.Err()
}

// --- helpers ---

func buildTransactionWhere(f TransactionFilter) (string, []any) {
	clauses := []string{"plate = ?"}
	args := []any{f.Plate}

	if f.From != nil {
		clauses = append(clauses, "crossed_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "crossed_at <= ?")
		args = append(args, formatTime(*f.To))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var tier int
	var status, multiplier, crossedAt, createdAt string
	var tagID, updatedAt sql.NullString
	var baseCents, finalCents int64

	err := row.Scan(
		&tx.ID, &tx.EventID, &tx.Plate, &tx.TollPointID, &tagID, &tier, &baseCents,
		&multiplier, &finalCents, &tx.Currency, &status, &crossedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.TagID = tagID.String
	tx.Tier = domain.Tier(tier)
	tx.BaseFare = currency.FromMinorUnits(baseCents)
	tx.FinalFare = currency.FromMinorUnits(finalCents)
	tx.Multiplier, err = decimal.NewFromString(multiplier)
	if err != nil {
		return nil, fmt.Errorf("multiplier %q: %w", multiplier, err)
	}
	tx.PaymentStatus = domain.PaymentStatus(status)
	tx.CrossedAt = parseTime(crossedAt)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseNullableTime(updatedAt)
	return &tx, nil
}
