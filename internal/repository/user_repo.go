package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

const userColumns = `plate, name, email, phone, user_type, has_tag, tag_id, tag_status,
	balance_cents, status, created_at, tag_created_at, tag_updated_at, tag_removed_at`

// UserRepo is the user directory: profiles keyed by plate with a unique
// secondary index on tag_id.
type UserRepo struct {
	db          *sql.DB
	logger      *slog.Logger
	casAttempts int

	// beforeSwap runs between the balance read and the conditional update.
	beforeSwap func()
}

func NewUserRepo(db *sql.DB, logger *slog.Logger, casAttempts int) *UserRepo {
	if casAttempts <= 0 {
		casAttempts = 3
	}
	return &UserRepo{db: db, logger: logger, casAttempts: casAttempts}
}

// Upsert creates the profile, or refreshes the contact details of an existing
// one. Balance and tag fields of an existing profile are never overwritten.
// It reports whether a new row was created.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.UserProfile) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Status == "" {
		u.Status = domain.AccountActive
	}

	// Only a plate collision is ignored. A tag bound to another plate still
	// fails on idx_users_tag.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(plate) DO NOTHING`,
		u.Plate, u.Name, nullableString(u.Email), nullableString(u.Phone), string(u.UserType),
		u.HasTag, nullableString(u.TagID), nullableString(string(u.TagStatus)),
		currency.ToMinorUnits(u.Balance), u.Status, formatTime(u.CreatedAt),
		formatNullableTime(u.TagCreatedAt), formatNullableTime(u.TagUpdatedAt), formatNullableTime(u.TagRemovedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("tag %s already bound to another plate: %w", u.TagID, domain.ErrConflict)
		}
		return false, fmt.Errorf("insert user %s: %w", u.Plate, err)
	}
	if ra, _ := res.RowsAffected(); ra == 1 {
		return true, nil
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, phone = ?, user_type = ? WHERE plate = ?`,
		u.Name, nullableString(u.Email), nullableString(u.Phone), string(u.UserType), u.Plate,
	)
	if err != nil {
		return false, fmt.Errorf("update user %s: %w", u.Plate, err)
	}
	return false, nil
}

func (r *UserRepo) GetByPlate(ctx context.Context, plate string) (*domain.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE plate = ?", plate)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", plate, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", plate, err)
	}
	return u, nil
}

// GetByTag returns the profile bound to tagID. The unique index guarantees at
// most one row; if that ever breaks, the first row wins and the violation is
// logged.
func (r *UserRepo) GetByTag(ctx context.Context, tagID string) (*domain.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tag_id = ? ORDER BY created_at LIMIT 2", tagID)
	if err != nil {
		return nil, fmt.Errorf("query tag %s: %w", tagID, err)
	}
	defer rows.Close()

	var users []*domain.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(users) {
	case 0:
		return nil, fmt.Errorf("tag %s: %w", tagID, domain.ErrNotFound)
	case 1:
	default:
		r.logger.Warn("tag bound to more than one plate, using first",
			"tag_id", tagID, "plates", []string{users[0].Plate, users[1].Plate})
	}
	return users[0], nil
}

// DebitBalance subtracts amount from the plate's balance with a
// compare-and-swap on the stored value, retried up to the configured bound.
// The balance is read outside the write transaction, so another debit (from
// this process or any other writer on the database file) can land in between;
// the conditional update then matches no row and the attempt is retried.
// The debit is journaled under reference, so repeating a call with the same
// reference returns the original debit with replayed=true instead of charging
// twice.
//
// Errors: domain.ErrNotFound when the plate is unknown,
// domain.ErrInsufficientFunds (with PreviousBalance filled in) when the
// balance is short, domain.ErrBalanceConflict when every CAS attempt lost.
func (r *UserRepo) DebitBalance(ctx context.Context, plate, reference string, amount decimal.Decimal) (domain.BalanceDebit, bool, error) {
	cents := currency.ToMinorUnits(amount)

	for attempt := 1; attempt <= r.casAttempts; attempt++ {
		debit, replayed, done, err := r.tryDebit(ctx, plate, reference, cents)
		if done || err != nil {
			return debit, replayed, err
		}
		r.logger.Debug("balance CAS lost, retrying", "plate", plate, "attempt", attempt)
	}
	return domain.BalanceDebit{}, false, fmt.Errorf("debit %s after %d attempts: %w",
		plate, r.casAttempts, domain.ErrBalanceConflict)
}

// tryDebit makes one CAS attempt. done=false with a nil error means the
// attempt lost a race and may be retried.
func (r *UserRepo) tryDebit(ctx context.Context, plate, reference string, cents int64) (debit domain.BalanceDebit, replayed, done bool, err error) {
	if prior, ok, err := r.journaledDebit(ctx, plate, reference); err != nil || ok {
		return prior, ok, true, err
	}

	var balance int64
	err = r.db.QueryRowContext(ctx, `SELECT balance_cents FROM users WHERE plate = ?`, plate).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return debit, false, true, fmt.Errorf("user %s: %w", plate, domain.ErrNotFound)
	}
	if err != nil {
		return debit, false, false, fmt.Errorf("read balance: %w", err)
	}

	debit = domain.BalanceDebit{
		Reference:       reference,
		Plate:           plate,
		Amount:          currency.FromMinorUnits(cents),
		PreviousBalance: currency.FromMinorUnits(balance),
	}
	if balance < cents {
		debit.NewBalance = debit.PreviousBalance
		return debit, false, true, fmt.Errorf("balance %s below %s: %w",
			currency.Format(debit.PreviousBalance), currency.Format(debit.Amount), domain.ErrInsufficientFunds)
	}

	if r.beforeSwap != nil {
		r.beforeSwap()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.BalanceDebit{}, false, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance_cents = ? WHERE plate = ? AND balance_cents = ?`,
		balance-cents, plate, balance,
	)
	if err != nil {
		return domain.BalanceDebit{}, false, false, fmt.Errorf("update balance: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return domain.BalanceDebit{}, false, false, nil
	}

	debit.NewBalance = currency.FromMinorUnits(balance - cents)
	debit.CreatedAt = time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO balance_debits (reference, plate, amount_cents, previous_cents, new_cents, created_at)
		VALUES (?,?,?,?,?,?)`,
		reference, plate, cents, balance, balance-cents, formatTime(debit.CreatedAt),
	)
	if isUniqueViolation(err) {
		// The same reference was journaled concurrently; the next attempt
		// replays it.
		return domain.BalanceDebit{}, false, false, nil
	}
	if err != nil {
		return domain.BalanceDebit{}, false, false, fmt.Errorf("write journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.BalanceDebit{}, false, false, fmt.Errorf("commit: %w", err)
	}
	return debit, false, true, nil
}

func (r *UserRepo) journaledDebit(ctx context.Context, plate, reference string) (domain.BalanceDebit, bool, error) {
	var amountCents, prevCents, newCents int64
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents, previous_cents, new_cents, created_at FROM balance_debits WHERE reference = ?`,
		reference,
	).Scan(&amountCents, &prevCents, &newCents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BalanceDebit{}, false, nil
	}
	if err != nil {
		return domain.BalanceDebit{}, false, fmt.Errorf("read journal: %w", err)
	}
	return domain.BalanceDebit{
		Reference:       reference,
		Plate:           plate,
		Amount:          currency.FromMinorUnits(amountCents),
		PreviousBalance: currency.FromMinorUnits(prevCents),
		NewBalance:      currency.FromMinorUnits(newCents),
		CreatedAt:       parseTime(createdAt),
	}, true, nil
}

// AssignTag binds tagID to a plate that has no tag yet.
func (r *UserRepo) AssignTag(ctx context.Context, plate, tagID string, status domain.TagStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET has_tag = 1, tag_id = ?, tag_status = ?, tag_created_at = ?,
			tag_updated_at = ?, tag_removed_at = NULL
		WHERE plate = ? AND has_tag = 0`,
		tagID, string(status), formatTime(at), formatTime(at), plate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tag %s: %w", tagID, domain.ErrConflict)
		}
		return fmt.Errorf("assign tag: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("plate %s missing or already tagged: %w", plate, domain.ErrConflict)
	}
	return nil
}

// UpdateTag changes the tag id and/or status of a tagged plate. Empty
// arguments leave the stored value unchanged.
func (r *UserRepo) UpdateTag(ctx context.Context, plate, tagID string, status domain.TagStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET tag_id = COALESCE(?, tag_id), tag_status = COALESCE(?, tag_status),
			tag_updated_at = ?
		WHERE plate = ? AND has_tag = 1`,
		nullableString(tagID), nullableString(string(status)), formatTime(at), plate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tag %s: %w", tagID, domain.ErrConflict)
		}
		return fmt.Errorf("update tag: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("plate %s has no tag: %w", plate, domain.ErrNotFound)
	}
	return nil
}

// RemoveTag clears the tag fields and stamps the removal time. The profile
// itself is kept.
func (r *UserRepo) RemoveTag(ctx context.Context, plate string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET has_tag = 0, tag_id = NULL, tag_status = NULL, tag_removed_at = ?
		WHERE plate = ? AND has_tag = 1`,
		formatTime(at), plate,
	)
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("plate %s has no tag: %w", plate, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.UserProfile, error) {
	var u domain.UserProfile
	var userType, createdAt string
	var email, phone, tagID, tagStatus sql.NullString
	var tagCreated, tagUpdated, tagRemoved sql.NullString
	var balance int64

	err := row.Scan(
		&u.Plate, &u.Name, &email, &phone, &userType, &u.HasTag, &tagID, &tagStatus,
		&balance, &u.Status, &createdAt, &tagCreated, &tagUpdated, &tagRemoved,
	)
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.Phone = phone.String
	u.UserType = domain.UserType(userType)
	u.TagID = tagID.String
	u.TagStatus = domain.TagStatus(tagStatus.String)
	u.Balance = currency.FromMinorUnits(balance)
	u.CreatedAt = parseTime(createdAt)
	u.TagCreatedAt = parseNullableTime(tagCreated)
	u.TagUpdatedAt = parseNullableTime(tagUpdated)
	u.TagRemovedAt = parseNullableTime(tagRemoved)
	return &u, nil
}
