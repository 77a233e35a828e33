package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

var penaltyRate = decimal.RequireFromString("0.50")

const (
	unknownPayerName = "Usuario Desconocido"
	notAvailable     = "N/A"
)

// BuildInvoice prices the invoice for a crossing. Tier 1 carries a 50% late
// payment penalty and is always pending. Tier 2 and 3 carry no penalty and
// are paid only when the balance debit went through.
func BuildInvoice(id, txnID string, pc domain.PricedCrossing, debited bool, now time.Time) domain.Invoice {
	base := currency.Round(pc.Fare.FinalFare)
	inv := domain.Invoice{
		ID:            id,
		TransactionID: txnID,
		Plate:         pc.Event.Plate,
		TollPointID:   pc.Event.TollPointID,
		Tier:          pc.Decision.Tier,
		BaseAmount:    base,
		Penalty:       decimal.Zero,
		Currency:      pc.Fare.Currency,
		IssuedAt:      pc.Event.Timestamp,
		CreatedAt:     now,
		Payer:         payer(pc),
	}

	if pc.Decision.Tier == domain.TierUnregistered {
		inv.Penalty = currency.Round(base.Mul(penaltyRate))
		inv.Status = domain.InvoicePending
		inv.Concept = "Paso por peaje - " + pc.TollName() + " (Pago pendiente + Multa por pago tardío)"
	} else {
		inv.Status = domain.InvoicePending
		if debited {
			inv.Status = domain.InvoicePaid
		}
		inv.Concept = "Paso por peaje - " + pc.TollName()
	}
	inv.Total = base.Add(inv.Penalty)
	return inv
}

func payer(pc domain.PricedCrossing) domain.Payer {
	p := domain.Payer{Name: unknownPayerName, Plate: pc.Event.Plate, Email: notAvailable}
	if pc.Profile == nil {
		return p
	}
	if pc.Profile.Name != "" {
		p.Name = pc.Profile.Name
	}
	if pc.Profile.Email != "" {
		p.Email = pc.Profile.Email
	}
	return p
}
