package service

import (
	"smartpos/internal/dto"
	"smartpos/internal/model"

	"github.com/shopspring/decimal"
)

// ── Cash ledger ───────────────────────────────────────────────────────────────
// Every money movement is stored as a positive amount plus a kind. Its effect
// on a balance comes only from classifying the kind into a bucket; free-text
// descriptions never take part.

type Bucket int

const (
	BucketDesconocido Bucket = iota
	BucketIngreso
	BucketEgreso
	BucketDevolucion
)

func (b Bucket) String() string {
	switch b {
	case BucketIngreso:
		return "ingreso"
	case BucketEgreso:
		return "egreso"
	case BucketDevolucion:
		return "devolucion"
	default:
		return "desconocido"
	}
}

var bucketPorTipo = map[model.TipoMovimientoCaja]Bucket{
	model.CajaVenta:         BucketIngreso,
	model.CajaPagoDeuda:     BucketIngreso,
	model.CajaIngresoManual: BucketIngreso,
	model.CajaEgresoManual:  BucketEgreso,
	model.CajaPagoGasto:     BucketEgreso,
	model.CajaRetiro:        BucketEgreso,
	model.CajaVuelto:        BucketEgreso,
	model.CajaDevolucion:    BucketDevolucion,
}

// Clasificar maps a movement kind to its bucket.
func Clasificar(tipo model.TipoMovimientoCaja) Bucket {
	return bucketPorTipo[tipo]
}

// Saldo is the classified fold of a set of movements.
type Saldo struct {
	Apertura     decimal.Decimal
	Ingresos     decimal.Decimal
	Egresos      decimal.Decimal
	Devoluciones decimal.Decimal
}

// Neto = apertura + ingresos - egresos - devoluciones.
func (s Saldo) Neto() decimal.Decimal {
	return s.Apertura.Add(s.Ingresos).Sub(s.Egresos).Sub(s.Devoluciones)
}

func (s Saldo) sumar(m model.MovimientoCaja) Saldo {
	switch Clasificar(m.Tipo) {
	case BucketIngreso:
		s.Ingresos = s.Ingresos.Add(m.Monto)
	case BucketEgreso:
		s.Egresos = s.Egresos.Add(m.Monto)
	case BucketDevolucion:
		s.Devoluciones = s.Devoluciones.Add(m.Monto)
	}
	return s
}

// Balance folds movements into a Saldo. With metodo set, only movements of
// that method count and the opening float applies only to efectivo. The
// result does not depend on the order of movs.
func Balance(apertura decimal.Decimal, movs []model.MovimientoCaja, metodo *model.MetodoPago) Saldo {
	s := Saldo{Apertura: apertura, Ingresos: cero, Egresos: cero, Devoluciones: cero}
	if metodo != nil && *metodo != model.MetodoEfectivo {
		s.Apertura = cero
	}
	for _, m := range movs {
		if metodo != nil && m.MetodoPago != *metodo {
			continue
		}
		s = s.sumar(m)
	}
	return s
}

// BalancePorMetodo folds movements per payment method; the opening float is
// attributed to efectivo.
func BalancePorMetodo(apertura decimal.Decimal, movs []model.MovimientoCaja) map[model.MetodoPago]Saldo {
	out := make(map[model.MetodoPago]Saldo, len(model.MetodosPago))
	for _, metodo := range model.MetodosPago {
		metodo := metodo
		out[metodo] = Balance(apertura, movs, &metodo)
	}
	return out
}

func saldoToDTO(s Saldo) dto.SaldoMetodo {
	return dto.SaldoMetodo{
		Ingresos:     s.Ingresos,
		Egresos:      s.Egresos,
		Devoluciones: s.Devoluciones,
		Neto:         s.Neto(),
	}
}
