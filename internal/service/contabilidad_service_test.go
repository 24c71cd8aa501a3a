package service

import (
	"context"
	"testing"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultado_NetoDeDevoluciones(t *testing.T) {
	f := newFixture(t)
	dia := f.now.Truncate(24 * time.Hour)
	f.abrirCaja(t, "0")
	p := f.producto("Auriculares", "1000", 10, 0)
	venta := f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 2)}, MetodoPago: "debito", EstadoPago: "pagado"})
	_, err := f.devs.RegistrarDevolucion(context.Background(), f.usuario, uuid.MustParse(venta.ID), devolver(p, 1))
	require.NoError(t, err)

	// next day, outside the period
	f.setClock(f.now.AddDate(0, 0, 1))
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 5)}, MetodoPago: "debito", EstadoPago: "pagado"})

	r, err := f.conta.Resultado(context.Background(), dia, dia.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, r.CantidadVentas)
	assertDec(t, "2000", r.VentasBrutas)
	assertDec(t, "1000", r.Devoluciones)
	assertDec(t, "1000", r.IngresoNeto)
	assertDec(t, "500", r.CostoMercaderia)
	assertDec(t, "500", r.MargenBruto)
	assertDec(t, "50", r.MargenPct)
	assertDec(t, venta.Impuesto.String(), r.ImpuestoIncluido)
}

func TestFlujoCaja_SaldoInicialSinFondoFijo(t *testing.T) {
	f := newFixture(t)
	dia1 := f.now.Truncate(24 * time.Hour)
	f.abrirCaja(t, "5000")
	p := f.producto("Auriculares", "2000", 10, 0)
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "efectivo", EstadoPago: "pagado"})

	f.setClock(f.now.AddDate(0, 0, 1))
	_, err := f.caja.RegistrarMovimientoManual(context.Background(), f.usuario, dto.MovimientoManualRequest{
		Tipo: "ingreso_manual", MetodoPago: "efectivo", Monto: dec("300"), Descripcion: "aporte",
	})
	require.NoError(t, err)
	_, err = f.caja.RegistrarMovimientoManual(context.Background(), f.usuario, dto.MovimientoManualRequest{
		Tipo: "retiro", MetodoPago: "efectivo", Monto: dec("100"), Descripcion: "retiro parcial",
	})
	require.NoError(t, err)
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "transferencia", EstadoPago: "pagado"})

	dia2 := dia1.AddDate(0, 0, 1)
	fl, err := f.conta.FlujoCaja(context.Background(), dia2, dia2.AddDate(0, 0, 1))
	require.NoError(t, err)
	assertDec(t, "2000", fl.SaldoInicial)
	assertDec(t, "2300", fl.Ingresos)
	assertDec(t, "100", fl.Egresos)
	assertDec(t, "0", fl.Devoluciones)
	assertDec(t, "4200", fl.SaldoFinal)
	assertDec(t, "200", fl.PorMetodo[string(model.MetodoEfectivo)].Neto)
	assertDec(t, "2000", fl.PorMetodo[string(model.MetodoTransferencia)].Neto)

	fl, err = f.conta.FlujoCaja(context.Background(), dia1, dia2)
	require.NoError(t, err)
	assertDec(t, "0", fl.SaldoInicial)
	assertDec(t, "2000", fl.SaldoFinal)
}

func TestAntiguedadDeudas(t *testing.T) {
	f := newFixture(t)
	c := f.cliente("0", "0", 0)
	for _, dias := range []int{-5, 10, 45, 100, 200} {
		f.store.SeedDeuda(model.Deuda{
			ClienteID:        c.ID,
			VentaID:          uuid.New(),
			Monto:            dec("1000"),
			SaldoPendiente:   dec("1000"),
			FechaVencimiento: f.now.AddDate(0, 0, -dias),
			Estado:           model.DeudaPendiente,
		})
	}
	f.store.SeedDeuda(model.Deuda{
		ClienteID: c.ID, VentaID: uuid.New(), Monto: dec("500"), SaldoPendiente: dec("0"),
		FechaVencimiento: f.now.AddDate(0, 0, -400), Estado: model.DeudaPagada,
	})

	r, err := f.conta.AntiguedadDeudas(context.Background(), f.now)
	require.NoError(t, err)
	require.Len(t, r.Tramos, 5)
	cantidades := map[string]int{}
	for _, tr := range r.Tramos {
		cantidades[tr.Tramo] = tr.Cantidad
	}
	assert.Equal(t, map[string]int{"al_dia": 1, "1-30": 1, "31-60": 1, "61-90": 0, "+90": 2}, cantidades)
	assertDec(t, "5000", r.Total)
}

func TestDiasVencida(t *testing.T) {
	venc := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, diasVencida(venc, venc))
	assert.Equal(t, 0, diasVencida(venc, venc.Add(-time.Hour)))
	assert.Equal(t, 1, diasVencida(venc, venc.Add(time.Hour)))
	assert.Equal(t, 30, diasVencida(venc, venc.AddDate(0, 0, 30)))
}

func TestValorizacionInventario(t *testing.T) {
	f := newFixture(t)
	f.producto("Parlante", "3000", 4, 0)
	f.producto("Cable", "500", 10, 0)
	f.producto("Agotado", "999", 0, 0)

	v, err := f.conta.ValorizacionInventario(context.Background())
	require.NoError(t, err)
	assert.Len(t, v.Items, 2)
	assert.Equal(t, 14, v.Unidades)
	assertDec(t, "8500", v.ValorCosto)
	assertDec(t, "17000", v.ValorVenta)
}

func TestAuditar(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "1000")
	c := f.cliente("50000", "0", 0)
	p := f.producto("Parlante", "3000", 4, 0)
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "efectivo", EstadoPago: "pagado"})
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, ClienteID: strPtr(c.ID.String()), MetodoPago: "efectivo", EstadoPago: "credito"})
	rep, err := f.caja.Cerrar(context.Background(), f.usuario, dto.CerrarCajaRequest{MontoContado: dec("4000")})
	require.NoError(t, err)

	aud, err := f.conta.Auditar(context.Background())
	require.NoError(t, err)
	assert.True(t, aud.OK)
	assert.Equal(t, 1, aud.ProductosRevisados)
	assert.Equal(t, 1, aud.ClientesRevisados)
	assert.Equal(t, 1, aud.SesionesRevisadas)

	// corrupt each stored total behind the ledgers' back
	prod := f.store.Producto(p.ID)
	prod.StockActual = 7
	f.store.SetProducto(prod)
	f.store.SeedCliente(model.Cliente{Nombre: "Sin deudas", SaldoDeuda: dec("100"), LimiteCredito: dec("1000"), Activo: true})
	sesiones, err := f.st.Caja.ListSesionesCerradas(context.Background())
	require.NoError(t, err)
	require.Len(t, sesiones, 1)
	ses := sesiones[0]
	otro := dec("1")
	ses.MontoEsperado = &otro
	f.store.SetSesion(ses)

	aud, err = f.conta.Auditar(context.Background())
	require.NoError(t, err)
	assert.False(t, aud.OK)
	tipos := map[string]int{}
	for _, d := range aud.Discrepancias {
		tipos[d.Tipo]++
	}
	assert.Equal(t, map[string]int{"stock": 1, "deuda_cliente": 1, "caja": 1}, tipos)
	assert.Equal(t, rep.SesionCajaID, ses.ID.String())
}
