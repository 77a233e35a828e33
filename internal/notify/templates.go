package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

const (
	registerURL = "https://guatepass.com/registro"
	topUpURL    = "https://guatepass.com/recargar"
	rule        = "----------------------------------------"
	footer      = "GuatePass - Sistema de Cobro Automatizado de Peajes\nSoporte: soporte@guatepass.com"
)

// Guatemala does not observe DST.
var localZone = time.FixedZone("America/Guatemala", -6*60*60)

func formatDate(t time.Time) string {
	return t.In(localZone).Format("02/01/2006 03:04 PM")
}

func invitationEmail(req Request) (string, string) {
	inv := req.Invoice
	subject := "Invitación GuatePass - Evita multas y paga automático"

	var b strings.Builder
	fmt.Fprintf(&b, "Hola,\n\n")
	fmt.Fprintf(&b, "Hemos detectado el paso de tu vehículo (placa %s) por el peaje %s.\n\n", req.Plate, req.TollName)
	fmt.Fprintf(&b, "FACTURA PENDIENTE\n%s\n", rule)
	fmt.Fprintf(&b, "Número de factura: %s\n", inv.ID)
	fmt.Fprintf(&b, "Fecha:             %s\n", formatDate(inv.IssuedAt))
	fmt.Fprintf(&b, "Peaje:             %s\n\n", req.TollName)
	fmt.Fprintf(&b, "Cargo base:        %s\n", currency.Format(inv.BaseAmount))
	fmt.Fprintf(&b, "Multa (50%%):       %s\n", currency.Format(inv.Penalty))
	fmt.Fprintf(&b, "%s\nTOTAL A PAGAR:     %s\nEstado: PENDIENTE\n%s\n\n", rule, currency.Format(inv.Total), rule)
	fmt.Fprintf(&b, "Regístrate en GuatePass: sin multas por pago tardío y cobro automático al pasar.\n")
	fmt.Fprintf(&b, "Regístrate aquí: %s\n\n%s\n", registerURL, footer)
	return subject, b.String()
}

func invitationSMS(req Request) string {
	inv := req.Invoice
	return fmt.Sprintf("GuatePass: Detectamos tu vehiculo %s en peaje %s.\n"+
		"FACTURA PENDIENTE No. %s\nTotal: %s (incluye multa 50%%)\n"+
		"Registrate y evita multas: %s",
		req.Plate, req.TollName, inv.ID, currency.Format(inv.Total), registerURL)
}

func chargeEmail(req Request, lowBalance decimal.Decimal) (string, string) {
	inv := req.Invoice
	paid := inv.Status == domain.InvoicePaid

	subject := "Cobro por peaje realizado - GuatePass"
	if !paid {
		subject = "Cobro por peaje pendiente - GuatePass"
	}

	name := "Usuario"
	if req.Profile != nil && req.Profile.Name != "" {
		name = req.Profile.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", name)
	fmt.Fprintf(&b, "Confirmamos tu paso por el peaje %s.\n\n", req.TollName)
	fmt.Fprintf(&b, "DETALLE DE LA TRANSACCIÓN\n%s\n", rule)
	fmt.Fprintf(&b, "Peaje:             %s\n", req.TollName)
	fmt.Fprintf(&b, "Placa:             %s\n", req.Plate)
	fmt.Fprintf(&b, "Fecha y hora:      %s\n%s\n\n", formatDate(inv.IssuedAt), rule)

	fmt.Fprintf(&b, "INFORMACIÓN DE COBRO\n%s\n", rule)
	fmt.Fprintf(&b, "Monto:             %s\n", currency.Format(inv.Total))
	if bu := req.Balance; bu != nil && bu.PreviousBalance != nil {
		fmt.Fprintf(&b, "Saldo anterior:    %s\n", currency.Format(*bu.PreviousBalance))
	}
	newBalance := currentBalance(req)
	if newBalance != nil {
		fmt.Fprintf(&b, "Saldo actual:      %s\n", currency.Format(*newBalance))
	}
	fmt.Fprintf(&b, "%s\n\n", rule)

	status := "PAGADA"
	if !paid {
		status = "PENDIENTE"
	}
	fmt.Fprintf(&b, "FACTURA\n%s\n", rule)
	fmt.Fprintf(&b, "Número:            %s\n", inv.ID)
	fmt.Fprintf(&b, "Estado:            %s\n", status)
	fmt.Fprintf(&b, "Concepto:          %s\n%s\n", inv.Concept, rule)

	switch {
	case req.Balance != nil && req.Balance.RequiresTopUp:
		fmt.Fprintf(&b, "\nSALDO INSUFICIENTE\nNo pudimos cobrar este paso. Recarga tu saldo para liquidar la factura.\n")
		fmt.Fprintf(&b, "Recarga aquí: %s\n", topUpURL)
	case newBalance != nil && newBalance.LessThan(lowBalance):
		fmt.Fprintf(&b, "\nALERTA DE SALDO BAJO\nTu saldo actual es %s. Te recomendamos recargar pronto.\n", currency.Format(*newBalance))
		fmt.Fprintf(&b, "Recarga aquí: %s\n", topUpURL)
	}

	fmt.Fprintf(&b, "\n%s\n\nGracias por usar GuatePass.\n", footer)
	return subject, b.String()
}

func currentBalance(req Request) *decimal.Decimal {
	if req.Balance == nil {
		return nil
	}
	if req.Balance.NewBalance != nil {
		return req.Balance.NewBalance
	}
	return req.Balance.PreviousBalance
}
