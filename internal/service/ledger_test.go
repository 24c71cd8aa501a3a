package service

import (
	"math/rand"
	"testing"

	"smartpos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mov(tipo model.TipoMovimientoCaja, metodo model.MetodoPago, monto string) model.MovimientoCaja {
	return model.MovimientoCaja{Tipo: tipo, MetodoPago: metodo, Monto: decimal.RequireFromString(monto)}
}

func TestClasificar(t *testing.T) {
	cases := map[model.TipoMovimientoCaja]Bucket{
		model.CajaVenta:         BucketIngreso,
		model.CajaPagoDeuda:     BucketIngreso,
		model.CajaIngresoManual: BucketIngreso,
		model.CajaEgresoManual:  BucketEgreso,
		model.CajaPagoGasto:     BucketEgreso,
		model.CajaRetiro:        BucketEgreso,
		model.CajaVuelto:        BucketEgreso,
		model.CajaDevolucion:    BucketDevolucion,
		"anulacion":             BucketDesconocido,
	}
	for tipo, want := range cases {
		assert.Equal(t, want, Clasificar(tipo), string(tipo))
	}
}

func TestBalance_ClassificationNotDescription(t *testing.T) {
	movs := []model.MovimientoCaja{
		mov(model.CajaVenta, model.MetodoEfectivo, "100.00"),
		// an expense described as a return is still an expense
		{Tipo: model.CajaEgresoManual, MetodoPago: model.MetodoEfectivo, Monto: decimal.NewFromInt(30), Descripcion: "devolucion a proveedor"},
		mov(model.CajaDevolucion, model.MetodoEfectivo, "20.00"),
	}
	s := Balance(decimal.NewFromInt(500), movs, nil)

	assert.True(t, s.Ingresos.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.Egresos.Equal(decimal.NewFromInt(30)))
	assert.True(t, s.Devoluciones.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.Neto().Equal(decimal.NewFromInt(550)))
}

func TestBalance_PerMethod(t *testing.T) {
	movs := []model.MovimientoCaja{
		mov(model.CajaVenta, model.MetodoEfectivo, "100.00"),
		mov(model.CajaVuelto, model.MetodoEfectivo, "50.00"),
		mov(model.CajaVenta, model.MetodoDebito, "80.00"),
		mov(model.CajaPagoGasto, model.MetodoDebito, "10.00"),
	}
	efectivo := model.MetodoEfectivo
	debito := model.MetodoDebito

	assert.Equal(t, "150", Balance(decimal.NewFromInt(100), movs, &efectivo).Neto().String())
	// opening float is cash only
	assert.Equal(t, "70", Balance(decimal.NewFromInt(100), movs, &debito).Neto().String())

	por := BalancePorMetodo(decimal.NewFromInt(100), movs)
	assert.Equal(t, "0", por[model.MetodoTransferencia].Neto().String())
	assert.Equal(t, "150", por[model.MetodoEfectivo].Neto().String())
}

func TestBalance_OrderIndependent(t *testing.T) {
	tipos := []model.TipoMovimientoCaja{
		model.CajaVenta, model.CajaPagoDeuda, model.CajaEgresoManual,
		model.CajaRetiro, model.CajaDevolucion, model.CajaVuelto,
	}
	r := rand.New(rand.NewSource(42))
	var movs []model.MovimientoCaja
	for i := 0; i < 200; i++ {
		movs = append(movs, model.MovimientoCaja{
			Tipo:       tipos[r.Intn(len(tipos))],
			MetodoPago: model.MetodosPago[r.Intn(len(model.MetodosPago))],
			Monto:      decimal.New(int64(r.Intn(100000)), -2),
		})
	}
	want := Balance(decimal.NewFromInt(1000), movs, nil)

	for i := 0; i < 10; i++ {
		shuffled := append([]model.MovimientoCaja(nil), movs...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Balance(decimal.NewFromInt(1000), shuffled, nil)
		assert.True(t, want.Neto().Equal(got.Neto()))
		assert.True(t, want.Devoluciones.Equal(got.Devoluciones))
	}
}
