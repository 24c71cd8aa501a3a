package service

import (
	"fmt"
	"time"

	"smartpos/internal/apierror"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Credit domain ─────────────────────────────────────────────────────────────
// Keeps Cliente.SaldoDeuda equal to the sum of its open debts and within the
// credit limit. Callers hold the row lock on the cliente.

type credito struct {
	clientes          repository.ClienteRepository
	deudas            repository.DeudaRepository
	diasGraciaDefault int
}

// extenderTx opens a debt for the unpaid part of a sale.
func (c *credito) extenderTx(tx *gorm.DB, cliente *model.Cliente, ventaID uuid.UUID, pendiente decimal.Decimal, ahora time.Time) (*model.Deuda, error) {
	if !pendiente.IsPositive() {
		return nil, apierror.Validation("una venta a credito debe dejar saldo pendiente", map[string]any{
			"pendiente": pendiente.StringFixed(2),
		})
	}
	if cliente.CreditoDisponible().LessThan(pendiente) {
		return nil, apierror.CreditLimitExceeded(
			cliente.ID.String(),
			cliente.LimiteCredito.StringFixed(2),
			cliente.SaldoDeuda.StringFixed(2),
			pendiente.StringFixed(2),
		)
	}

	dias := cliente.DiasGracia
	if dias <= 0 {
		dias = c.diasGraciaDefault
	}
	deuda := &model.Deuda{
		ID:               uuid.New(),
		ClienteID:        cliente.ID,
		VentaID:          ventaID,
		Monto:            pendiente,
		SaldoPendiente:   pendiente,
		FechaVencimiento: ahora.AddDate(0, 0, dias),
		Estado:           model.DeudaPendiente,
		CreatedAt:        ahora,
		UpdatedAt:        ahora,
	}
	if err := c.deudas.CreateTx(tx, deuda); err != nil {
		return nil, fmt.Errorf("crear deuda: %w", err)
	}
	cliente.SaldoDeuda = cliente.SaldoDeuda.Add(pendiente)
	if err := c.clientes.UpdateTx(tx, cliente); err != nil {
		return nil, fmt.Errorf("actualizar saldo cliente: %w", err)
	}
	return deuda, nil
}

// reducirTx lowers a debt and the customer's balance by monto (payment or
// return). A remaining balance under half a cent settles the debt.
// Returns true when this call settled it.
func (c *credito) reducirTx(tx *gorm.DB, deuda *model.Deuda, cliente *model.Cliente, monto decimal.Decimal, ahora time.Time) (bool, error) {
	if monto.GreaterThan(deuda.SaldoPendiente.Add(epsilon)) {
		return false, apierror.Validation("el monto supera el saldo pendiente de la deuda", map[string]any{
			"monto":           monto.StringFixed(2),
			"saldo_pendiente": deuda.SaldoPendiente.StringFixed(2),
		})
	}
	aplicado := minDec(monto, deuda.SaldoPendiente)
	deuda.SaldoPendiente = deuda.SaldoPendiente.Sub(aplicado)
	deuda.UpdatedAt = ahora

	saldada := false
	if esCero(deuda.SaldoPendiente) {
		aplicado = aplicado.Add(deuda.SaldoPendiente)
		deuda.SaldoPendiente = cero
		deuda.Estado = model.DeudaPagada
		deuda.PagadaAt = &ahora
		saldada = true
	}
	if err := c.deudas.UpdateTx(tx, deuda); err != nil {
		return false, fmt.Errorf("actualizar deuda: %w", err)
	}

	cliente.SaldoDeuda = cliente.SaldoDeuda.Sub(aplicado)
	if cliente.SaldoDeuda.IsNegative() {
		cliente.SaldoDeuda = cero
	}
	if err := c.clientes.UpdateTx(tx, cliente); err != nil {
		return false, fmt.Errorf("actualizar saldo cliente: %w", err)
	}
	return saldada, nil
}
