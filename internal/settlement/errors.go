package settlement

import "fmt"

type Stage string

const (
	StageRecord  Stage = "RECORD"
	StageDebit   Stage = "DEBIT"
	StageInvoice Stage = "INVOICE"
	StageNotify  Stage = "NOTIFY"
)

// StageError is a fatal settlement failure. The whole crossing can be
// redelivered: every stage is idempotent under the transaction id.
type StageError struct {
	Stage         Stage
	TransactionID string
	Err           error
}

func (e *StageError) Error() string {
	if e.TransactionID == "" {
		return fmt.Sprintf("settlement %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("settlement %s %s: %v", e.Stage, e.TransactionID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
