package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/model"
	"smartpos/internal/repository"
	"smartpos/internal/repository/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture wires every service to one in-memory store, the way main wires
// them to PostgreSQL.
type fixture struct {
	store   *memstore.Store
	st      *repository.Set
	usuario uuid.UUID
	now     time.Time

	ventas *ventaService
	devs   *devolucionService
	deudas *deudaService
	caja   *cajaService
	gastos *gastoService
	conta  ContabilidadService
	inv    InventarioService

	seq int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	st := store.Set()
	reglas := ReglasDefault()
	f := &fixture{
		store:   store,
		st:      st,
		usuario: uuid.New(),
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		ventas:  newVentaService(st, reglas, nil),
		devs:    NewDevolucionService(st, reglas, nil).(*devolucionService),
		deudas:  NewDeudaService(st, reglas, nil).(*deudaService),
		caja:    NewCajaService(st, nil).(*cajaService),
		gastos:  NewGastoService(st, nil).(*gastoService),
		conta:   NewContabilidadService(st),
		inv:     NewInventarioService(st, nil),
	}
	f.setClock(f.now)
	return f
}

// setClock pins "now" for every service.
func (f *fixture) setClock(t time.Time) {
	f.now = t
	clock := func() time.Time { return f.now }
	f.ventas.clock = clock
	f.ventas.lealtad.clock = clock
	f.devs.clock = clock
	f.devs.lealtad.clock = clock
	f.deudas.clock = clock
	f.deudas.lealtad.clock = clock
	f.caja.clock = clock
	f.gastos.clock = clock
	f.store.SetClock(clock)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{fmt.Sprintf("want %s, got %s", want, got.String())}, msgAndArgs...)...)
}

// producto seeds a product with cost at half the price and 21% VAT.
func (f *fixture) producto(nombre, precio string, stock, minimo int) model.Producto {
	f.seq++
	p := dec(precio)
	return f.store.SeedProducto(model.Producto{
		CodigoBarras: fmt.Sprintf("779%010d", f.seq),
		Nombre:       nombre,
		Categoria:    model.CategoriaGeneral,
		Atributos:    model.Atributos{Valor: model.AtributosGeneral{}},
		PrecioCosto:  p.Div(decimal.NewFromInt(2)).Round(2),
		PrecioVenta:  p,
		AlicuotaIVA:  decimal.NewFromInt(21),
		StockActual:  stock,
		StockMinimo:  minimo,
		Activo:       true,
	})
}

// cliente seeds a customer; a non-zero saldo comes with the open debt that
// backs it so the credit ledger stays consistent.
func (f *fixture) cliente(limite, saldo string, puntos int64) model.Cliente {
	c := f.store.SeedCliente(model.Cliente{
		Nombre:        "Cliente " + uuid.NewString()[:8],
		LimiteCredito: dec(limite),
		SaldoDeuda:    dec(saldo),
		PuntosSaldo:   puntos,
		DiasGracia:    30,
		Activo:        true,
	})
	if dec(saldo).IsPositive() {
		f.store.SeedDeuda(model.Deuda{
			ClienteID:        c.ID,
			VentaID:          uuid.New(),
			Monto:            dec(saldo),
			SaldoPendiente:   dec(saldo),
			FechaVencimiento: f.now.AddDate(0, 0, 30),
			Estado:           model.DeudaPendiente,
			CreatedAt:        f.now,
		})
	}
	return c
}

func (f *fixture) abrirCaja(t *testing.T, monto string) {
	t.Helper()
	_, err := f.caja.Abrir(context.Background(), f.usuario, dto.AbrirCajaRequest{MontoInicial: dec(monto)})
	require.NoError(t, err)
}

// saldoCaja is the classified balance of the user's open register for metodo.
func (f *fixture) saldoCaja(t *testing.T, metodo model.MetodoPago) decimal.Decimal {
	t.Helper()
	rep, err := f.caja.GetActiva(context.Background(), f.usuario)
	require.NoError(t, err)
	return rep.PorMetodo[string(metodo)].Neto
}

func (f *fixture) vender(t *testing.T, req dto.RegistrarVentaRequest) *dto.VentaResponse {
	t.Helper()
	resp, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, req)
	require.NoError(t, err)
	return resp
}

func item(p model.Producto, cantidad int) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{ProductoID: p.ID.String(), Cantidad: cantidad}
}

func strPtr(s string) *string { return &s }

// assertLedgers checks the stock and credit invariants over the whole store.
func (f *fixture) assertLedgers(t *testing.T) {
	t.Helper()
	aud, err := f.conta.Auditar(context.Background())
	require.NoError(t, err)
	assert.Empty(t, aud.Discrepancias)
}
