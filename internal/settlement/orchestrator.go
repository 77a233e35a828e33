package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/notify"
)

type Transactions interface {
	Insert(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	MarkStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) (bool, error)
}

type Invoices interface {
	Insert(ctx context.Context, inv *domain.Invoice) error
	GetByTransactionID(ctx context.Context, txnID string) (*domain.Invoice, error)
}

// Balances is the directory's atomic debit primitive. Repeating a call with
// the same reference must not debit twice.
type Balances interface {
	DebitBalance(ctx context.Context, plate, reference string, amount decimal.Decimal) (domain.BalanceDebit, bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, req notify.Request) (domain.NotificationOutcome, error)
}

type Dependencies struct {
	Transactions Transactions
	Invoices     Invoices
	Balances     Balances
	Notifier     Notifier
}

type Options struct {
	// StageTimeout bounds each collaborator call. Zero disables the bound.
	StageTimeout time.Duration
	// NodeID seeds the snowflake generator for invoice ids.
	NodeID int64
}

// Result is what one settlement invocation did.
type Result struct {
	Transaction  *domain.Transaction        `json:"transaction"`
	Balance      domain.BalanceUpdate       `json:"balance_update"`
	Invoice      *domain.Invoice            `json:"invoice"`
	Notification domain.NotificationOutcome `json:"notification"`

	// Replayed is set when an earlier invocation already settled the
	// crossing and this one changed nothing.
	Replayed bool `json:"replayed"`
}

// Orchestrator runs RECORD, DEBIT, INVOICE and NOTIFY for a priced crossing.
type Orchestrator struct {
	deps    Dependencies
	timeout time.Duration
	ids     *snowflake.Node
	logger  *slog.Logger
	now     func() time.Time
}

func NewOrchestrator(deps Dependencies, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	node, err := snowflake.NewNode(opts.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invoice id generator: %w", err)
	}
	return &Orchestrator{
		deps:    deps,
		timeout: opts.StageTimeout,
		ids:     node,
		logger:  logger.With("component", "settlement"),
		now:     time.Now,
	}, nil
}

// Settle is safe to call again with the same crossing: the transaction id is
// derived from the event, the debit is journaled under it and there is one
// invoice per transaction. A *StageError means the caller should redeliver.
// Validation errors are returned unwrapped and must not be retried.
func (o *Orchestrator) Settle(ctx context.Context, pc domain.PricedCrossing) (*Result, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	txnID := pc.Event.TransactionID()
	log := o.logger.With("transaction_id", txnID, "plate", pc.Event.Plate, "tier", pc.Decision.Tier)

	txn, err := o.record(ctx, txnID, pc)
	if err != nil {
		return nil, &StageError{Stage: StageRecord, TransactionID: txnID, Err: err}
	}

	balance, err := o.debit(ctx, txn, pc)
	if err != nil {
		return nil, &StageError{Stage: StageDebit, TransactionID: txnID, Err: err}
	}

	inv, invoiceCreated, err := o.invoice(ctx, txnID, pc, balance.Updated)
	if err != nil {
		log.Error("invoice failed, transaction left pending", "error", err)
		return nil, &StageError{Stage: StageInvoice, TransactionID: txnID, Err: err}
	}

	statusChanged, err := o.finalize(ctx, txn, pc.Decision.Tier, balance)
	if err != nil {
		return nil, &StageError{Stage: StageInvoice, TransactionID: txnID, Err: err}
	}

	res := &Result{Transaction: txn, Balance: balance, Invoice: inv}
	if !invoiceCreated && !statusChanged {
		res.Replayed = true
		res.Notification = domain.NotificationOutcome{At: o.now().UTC(), Message: "already settled, not notified again"}
		log.Info("settlement replayed", "invoice_id", inv.ID)
		return res, nil
	}

	res.Notification = o.notify(ctx, notify.Request{
		Tier:     pc.Decision.Tier,
		Plate:    pc.Event.Plate,
		TollName: pc.TollName(),
		Profile:  pc.Profile,
		Invoice:  inv,
		Balance:  &balance,
	})

	log.Info("crossing settled",
		"invoice_id", inv.ID, "total", inv.Total.StringFixed(2), "invoice_status", inv.Status,
		"debit", balance.Reason, "payment_status", txn.PaymentStatus, "notified", res.Notification.Sent)
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, txnID string, pc domain.PricedCrossing) (*domain.Transaction, error) {
	ctx, cancel := o.bound(ctx)
	defer cancel()

	txn := &domain.Transaction{
		ID:            txnID,
		EventID:       pc.Event.EventID,
		Plate:         pc.Event.Plate,
		TollPointID:   pc.Event.TollPointID,
		TagID:         pc.Event.TagID,
		Tier:          pc.Decision.Tier,
		BaseFare:      pc.Fare.BaseFare,
		Multiplier:    pc.Fare.Multiplier,
		FinalFare:     pc.Fare.FinalFare,
		Currency:      pc.Fare.Currency,
		PaymentStatus: domain.PaymentPending,
		CrossedAt:     pc.Event.Timestamp,
		CreatedAt:     o.now(),
	}

	err := o.deps.Transactions.Insert(ctx, txn)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, domain.ErrDuplicate) {
		return nil, err
	}

	existing, err := o.deps.Transactions.GetByID(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("load existing transaction: %w", err)
	}
	return existing, nil
}

// debit charges registered owners on Tier 2 and 3. Refusals are outcomes,
// not errors; only storage failures are returned.
func (o *Orchestrator) debit(ctx context.Context, txn *domain.Transaction, pc domain.PricedCrossing) (domain.BalanceUpdate, error) {
	amount := pc.Fare.FinalFare
	update := domain.BalanceUpdate{Reason: domain.DebitNotApplicable, Amount: amount}

	if pc.Profile == nil || !pc.Profile.IsRegistered() || pc.Decision.Tier == domain.TierUnregistered {
		return update, nil
	}
	if txn.PaymentStatus == domain.PaymentFailed {
		// An earlier attempt refused the debit and the invoice is already
		// pending. Charging now would contradict it.
		update.Reason = domain.DebitInsufficientFunds
		update.RequiresTopUp = true
		return update, nil
	}

	ctx, cancel := o.bound(ctx)
	defer cancel()

	debit, replayed, err := o.deps.Balances.DebitBalance(ctx, pc.Profile.Plate, txn.ID, amount)
	switch {
	case err == nil:
		update.Updated = true
		update.Reason = domain.DebitApplied
		update.PreviousBalance = &debit.PreviousBalance
		update.NewBalance = &debit.NewBalance
		if replayed {
			o.logger.Info("debit already applied", "transaction_id", txn.ID)
		}
	case errors.Is(err, domain.ErrInsufficientFunds):
		update.Reason = domain.DebitInsufficientFunds
		update.RequiresTopUp = true
		update.PreviousBalance = &debit.PreviousBalance
	case errors.Is(err, domain.ErrBalanceConflict):
		o.logger.Warn("balance kept changing, treating as insufficient", "plate", pc.Profile.Plate)
		update.Reason = domain.DebitInsufficientFunds
		update.RequiresTopUp = true
	case errors.Is(err, domain.ErrNotFound):
		o.logger.Warn("profile vanished before debit", "plate", pc.Profile.Plate)
		update.Reason = domain.DebitUserNotFound
	default:
		return update, err
	}
	return update, nil
}

// invoice reports whether this call created the invoice. A duplicate means
// an earlier attempt got this far, and its invoice is returned.
func (o *Orchestrator) invoice(ctx context.Context, txnID string, pc domain.PricedCrossing, debited bool) (*domain.Invoice, bool, error) {
	ctx, cancel := o.bound(ctx)
	defer cancel()

	inv := BuildInvoice("FAC-"+o.ids.Generate().String(), txnID, pc, debited, o.now())
	err := o.deps.Invoices.Insert(ctx, &inv)
	if err == nil {
		return &inv, true, nil
	}
	if !errors.Is(err, domain.ErrDuplicate) {
		return nil, false, err
	}

	existing, err := o.deps.Invoices.GetByTransactionID(ctx, txnID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing invoice: %w", err)
	}
	return existing, false, nil
}

// finalize moves the transaction out of pending once it has an invoice.
// Tier 1 stays pending until the cash payment is reconciled.
func (o *Orchestrator) finalize(ctx context.Context, txn *domain.Transaction, tier domain.Tier, balance domain.BalanceUpdate) (bool, error) {
	if tier == domain.TierUnregistered || balance.Reason == domain.DebitNotApplicable {
		return false, nil
	}
	status := domain.PaymentFailed
	if balance.Updated {
		status = domain.PaymentCompleted
	}
	if !txn.PaymentStatus.CanTransitionTo(status) {
		return false, nil
	}

	ctx, cancel := o.bound(ctx)
	defer cancel()

	now := o.now()
	changed, err := o.deps.Transactions.MarkStatus(ctx, txn.ID, status, now)
	if err != nil {
		return false, fmt.Errorf("mark transaction %s: %w", status, err)
	}
	if changed {
		txn.PaymentStatus = status
		txn.UpdatedAt = &now
	}
	return changed, nil
}

// notify never fails the settlement. Sender errors and panics become a
// failed outcome.
func (o *Orchestrator) notify(ctx context.Context, req notify.Request) (out domain.NotificationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("notifier panicked", "plate", req.Plate, "panic", r)
			out = domain.NotificationOutcome{
				At:      o.now().UTC(),
				Message: "notification failed",
				Error:   fmt.Sprint(r),
			}
		}
	}()

	ctx, cancel := o.bound(ctx)
	defer cancel()

	out, err := o.deps.Notifier.Notify(ctx, req)
	if err != nil {
		o.logger.Warn("notification failed", "plate", req.Plate, "error", err)
		out.Sent = false
		if out.Error == "" {
			out.Error = err.Error()
		}
		if out.At.IsZero() {
			out.At = o.now().UTC()
		}
	}
	return out
}

func (o *Orchestrator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
