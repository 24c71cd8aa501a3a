package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"smartpos/internal/apierror"
	"smartpos/internal/dto"
	"smartpos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrarVenta_StockBajoMinimoProgramaUnaAlerta(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Yerba 1kg", "2500", 10, 5)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(p, 6)},
		MetodoPago: "efectivo",
		EstadoPago: "pagado",
	})

	assert.Equal(t, 4, f.store.Producto(p.ID).StockActual)
	assertDec(t, "15000", resp.Total)

	alertas := f.store.Eventos(model.EventoAlertaStock)
	require.Len(t, alertas, 1)
	assert.Equal(t, claveAlertaStock(uuid.MustParse(resp.ID), p.ID), alertas[0].Clave)
	assert.Contains(t, alertas[0].Payload, p.ID.String())

	movs := f.store.MovimientosStock(p.ID)
	require.Len(t, movs, 2)
	assert.Equal(t, model.StockSalida, movs[1].Tipo)
	assert.Equal(t, -6, movs[1].Cantidad)
	assert.Equal(t, 10, movs[1].StockAnterior)
	assert.Equal(t, 4, movs[1].StockNuevo)
	f.assertLedgers(t)
}

func TestRegistrarVenta_SobreElMinimoNoAlerta(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Fideos", "900", 20, 5)

	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 2)}, MetodoPago: "debito", EstadoPago: "pagado"})

	assert.Empty(t, f.store.Eventos(model.EventoAlertaStock))
}

func TestRegistrarVenta_CreditoSuperaLimite(t *testing.T) {
	f := newFixture(t)
	c := f.cliente("100000", "90000", 0)
	p := f.producto("Heladera", "15000", 3, 0)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(p, 1)},
		ClienteID:  strPtr(c.ID.String()),
		MetodoPago: "efectivo",
		EstadoPago: "credito",
	})

	require.ErrorIs(t, err, apierror.ErrCreditLimitExceeded)
	e, _ := apierror.As(err)
	assert.Equal(t, "15000.00", e.Details["solicitado"])
	assertDec(t, "90000", f.store.Cliente(c.ID).SaldoDeuda)
	assert.Equal(t, 3, f.store.Producto(p.ID).StockActual)
	assert.Len(t, f.store.MovimientosStock(p.ID), 1)
	assert.Empty(t, f.store.Ventas())
}

func TestRegistrarVenta_EfectivoConVuelto(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "50000")
	p := f.producto("Microondas", "20000", 5, 0)
	antes := f.saldoCaja(t, model.MetodoEfectivo)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:         []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago:    "efectivo",
		EstadoPago:    "pagado",
		MontoRecibido: ptrDec("50000"),
	})

	assertDec(t, "50000", resp.MontoRecibido)
	assertDec(t, "30000", resp.Vuelto)

	movs := f.store.MovimientosCaja()
	require.Len(t, movs, 2)
	assert.Equal(t, model.CajaVenta, movs[0].Tipo)
	assertDec(t, "50000", movs[0].Monto)
	assert.Equal(t, model.CajaVuelto, movs[1].Tipo)
	assertDec(t, "30000", movs[1].Monto)
	assert.Equal(t, BucketEgreso, Clasificar(movs[1].Tipo))

	assertDec(t, "20000", f.saldoCaja(t, model.MetodoEfectivo).Sub(antes))
	assertDec(t, "70000", f.saldoCaja(t, model.MetodoEfectivo))
}

func TestRegistrarVenta_RecibidoInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Cafe", "3000", 5, 0)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:         []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago:    "efectivo",
		EstadoPago:    "pagado",
		MontoRecibido: ptrDec("2000"),
	})

	require.ErrorIs(t, err, apierror.ErrValidation)
	assert.Equal(t, 5, f.store.Producto(p.ID).StockActual)
	assert.Empty(t, f.store.MovimientosCaja())
}

func TestRegistrarVenta_CanjeBajoElMinimoSeIgnora(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	c := f.cliente("0", "0", 500)
	p := f.producto("Vino", "10000", 5, 0)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:       []dto.ItemVentaRequest{item(p, 1)},
		ClienteID:   strPtr(c.ID.String()),
		MetodoPago:  "transferencia",
		EstadoPago:  "pagado",
		PuntosCanje: 50,
	})

	assert.Equal(t, int64(50), resp.PuntosSolicitados)
	assert.Equal(t, int64(0), resp.PuntosCanjeados)
	assertDec(t, "0", resp.DescuentoPuntos)
	assertDec(t, "10000", resp.Total)
	assert.Equal(t, int64(10), resp.PuntosAcumulados)
	assert.Equal(t, int64(510), f.store.Cliente(c.ID).PuntosSaldo)
}

func TestRegistrarVenta_CanjeAplicaDescuento(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	c := f.cliente("0", "0", 500)
	p := f.producto("Vino", "10000", 5, 0)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:       []dto.ItemVentaRequest{item(p, 1)},
		ClienteID:   strPtr(c.ID.String()),
		MetodoPago:  "debito",
		EstadoPago:  "pagado",
		PuntosCanje: 200,
	})

	assert.Equal(t, int64(200), resp.PuntosCanjeados)
	assertDec(t, "2000", resp.DescuentoPuntos)
	assertDec(t, "10000", resp.TotalBruto)
	assertDec(t, "8000", resp.Total)
	assertDec(t, resp.Total.String(), resp.Subtotal.Add(resp.Impuesto))
	assert.Equal(t, int64(8), resp.PuntosAcumulados)
	assert.Equal(t, int64(308), f.store.Cliente(c.ID).PuntosSaldo)

	ledger := f.store.MovimientosPuntos(c.ID)
	require.Len(t, ledger, 2)
	assert.Equal(t, model.PuntosCanje, ledger[0].Tipo)
	assert.Equal(t, int64(-200), ledger[0].Puntos)
	assert.Equal(t, model.PuntosAcumulacion, ledger[1].Tipo)
}

func TestRegistrarVenta_CanjeSuperaSaldoDePuntos(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	c := f.cliente("0", "0", 150)
	p := f.producto("Vino", "10000", 5, 0)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:       []dto.ItemVentaRequest{item(p, 1)},
		ClienteID:   strPtr(c.ID.String()),
		MetodoPago:  "debito",
		EstadoPago:  "pagado",
		PuntosCanje: 200,
	})

	require.ErrorIs(t, err, apierror.ErrValidation)
	assert.Equal(t, int64(150), f.store.Cliente(c.ID).PuntosSaldo)
	assert.Equal(t, 5, f.store.Producto(p.ID).StockActual)
}

func TestRegistrarVenta_SinStockNoDejaRastro(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	a := f.producto("Arroz", "1200", 10, 0)
	b := f.producto("Aceite", "4000", 1, 0)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(a, 3), item(b, 2)},
		MetodoPago: "efectivo",
		EstadoPago: "pagado",
	})

	require.ErrorIs(t, err, apierror.ErrOutOfStock)
	e, _ := apierror.As(err)
	assert.Equal(t, b.ID.String(), e.Details["producto_id"])
	assert.Equal(t, 2, e.Details["solicitado"])
	assert.Equal(t, 1, e.Details["disponible"])

	assert.Equal(t, 10, f.store.Producto(a.ID).StockActual)
	assert.Equal(t, 1, f.store.Producto(b.ID).StockActual)
	assert.Len(t, f.store.MovimientosStock(a.ID), 1)
	assert.Empty(t, f.store.Ventas())
	assert.Empty(t, f.store.MovimientosCaja())
	f.assertLedgers(t)
}

func TestRegistrarVenta_SinCajaAbierta(t *testing.T) {
	f := newFixture(t)
	p := f.producto("Arroz", "1200", 10, 0)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: "efectivo",
		EstadoPago: "pagado",
	})

	require.ErrorIs(t, err, apierror.ErrRegisterNotOpen)
	assert.Equal(t, 10, f.store.Producto(p.ID).StockActual)
	assert.Empty(t, f.store.Ventas())
}

func TestRegistrarVenta_CreditoTotalNoRequiereCaja(t *testing.T) {
	f := newFixture(t)
	c := f.cliente("50000", "0", 0)
	p := f.producto("Arroz", "1200", 10, 0)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(p, 2)},
		ClienteID:  strPtr(c.ID.String()),
		MetodoPago: "efectivo",
		EstadoPago: "credito",
	})

	assertDec(t, "0", resp.MontoPagado)
	assertDec(t, "2400", resp.MontoPendiente)
	assert.Nil(t, resp.SesionCajaID)
	assert.Equal(t, int64(0), resp.PuntosAcumulados)
	assert.Empty(t, f.store.MovimientosCaja())
	assertDec(t, "2400", f.store.Cliente(c.ID).SaldoDeuda)
}

func TestRegistrarVenta_CreditoParcial(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "1000")
	c := f.cliente("100000", "0", 0)
	p := f.producto("Televisor", "30000", 2, 0)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:       []dto.ItemVentaRequest{item(p, 1)},
		ClienteID:   strPtr(c.ID.String()),
		MetodoPago:  "efectivo",
		EstadoPago:  "credito",
		MontoPagado: ptrDec("10000"),
	})

	assertDec(t, "10000", resp.MontoPagado)
	assertDec(t, "20000", resp.MontoPendiente)
	require.NotNil(t, resp.DeudaID)
	require.NotNil(t, resp.FechaVencimiento)
	assert.Equal(t, fechaISO(f.now.AddDate(0, 0, 30)), *resp.FechaVencimiento)

	d := f.store.Deuda(uuid.MustParse(*resp.DeudaID))
	assertDec(t, "20000", d.SaldoPendiente)
	assert.Equal(t, model.DeudaPendiente, d.Estado)
	assertDec(t, "20000", f.store.Cliente(c.ID).SaldoDeuda)
	assertDec(t, "11000", f.saldoCaja(t, model.MetodoEfectivo))
	assert.Empty(t, f.store.Eventos(model.EventoAcumularPuntos))
	f.assertLedgers(t)
}

func TestRegistrarVenta_CreditoSinSaldoPendiente(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	c := f.cliente("100000", "0", 0)
	p := f.producto("Televisor", "30000", 2, 0)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items:       []dto.ItemVentaRequest{item(p, 1)},
		ClienteID:   strPtr(c.ID.String()),
		MetodoPago:  "efectivo",
		EstadoPago:  "credito",
		MontoPagado: ptrDec("30000"),
	})

	require.ErrorIs(t, err, apierror.ErrValidation)
	assert.Equal(t, 2, f.store.Producto(p.ID).StockActual)
}

func TestRegistrarVenta_ClienteNuevoSeRevierteConLaVenta(t *testing.T) {
	f := newFixture(t)
	p := f.producto("Televisor", "30000", 2, 0)
	req := dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)},
		ClienteNuevo: &dto.ClienteNuevoRequest{
			Nombre:    "Ana Gomez",
			Documento: strPtr("30111222"),
		},
		MetodoPago: "efectivo",
		EstadoPago: "credito",
	}

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, req)
	require.ErrorIs(t, err, apierror.ErrCreditLimitExceeded)
	clientes, err := f.st.Clientes.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clientes)

	// the rolled back insert left no row behind to collide with
	req.ClienteNuevo.LimiteCredito = dec("50000")
	resp := f.vender(t, req)
	require.NotNil(t, resp.ClienteID)
	c := f.store.Cliente(uuid.MustParse(*resp.ClienteID))
	assert.Equal(t, "Ana Gomez", c.Nombre)
	assertDec(t, "30000", c.SaldoDeuda)
	assert.Equal(t, 30, c.DiasGracia)
}

func TestRegistrarVenta_ClienteNuevoDocumentoDuplicado(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Yerba", "2500", 10, 0)
	nuevo := func() *dto.ClienteNuevoRequest {
		return &dto.ClienteNuevoRequest{Nombre: "Juan Perez", Documento: strPtr("20333444")}
	}
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, ClienteNuevo: nuevo(), MetodoPago: "debito", EstadoPago: "pagado"})

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, ClienteNuevo: nuevo(), MetodoPago: "debito", EstadoPago: "pagado",
	})

	require.ErrorIs(t, err, apierror.ErrValidation)
	assert.Equal(t, 9, f.store.Producto(p.ID).StockActual)
}

func TestRegistrarVenta_TimeoutEsReintentable(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Yerba", "2500", 10, 0)
	f.store.FailNextCommit(context.DeadlineExceeded)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "efectivo", EstadoPago: "pagado",
	})

	require.ErrorIs(t, err, apierror.ErrTransactionTimeout)
	assert.True(t, apierror.Retryable(err))
	assert.Equal(t, 10, f.store.Producto(p.ID).StockActual)
	assert.Empty(t, f.store.MovimientosCaja())

	// retrying the same request succeeds
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "efectivo", EstadoPago: "pagado"})
	assert.Equal(t, 9, f.store.Producto(p.ID).StockActual)
}

func TestRegistrarVenta_ContextoCancelado(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Yerba", "2500", 10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "efectivo", EstadoPago: "pagado",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 10, f.store.Producto(p.ID).StockActual)
}

func TestRegistrarVenta_ConcurrenciaNoSobrevende(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Entrada recital", "5000", 10, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		sinStock int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
				Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "debito", EstadoPago: "pagado",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apierror.ErrOutOfStock):
				sinStock++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, sinStock)
	assert.Equal(t, 0, f.store.Producto(p.ID).StockActual)
	assert.Len(t, f.store.Ventas(), 10)
	f.assertLedgers(t)
}

func TestRegistrarVenta_LineasDuplicadasSeUnifican(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	p := f.producto("Galletitas", "800", 10, 0)

	resp := f.vender(t, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{item(p, 2), item(p, 3)},
		MetodoPago: "efectivo",
		EstadoPago: "pagado",
	})

	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].Cantidad)
	assert.Equal(t, "Galletitas", resp.Items[0].Producto)
	assertDec(t, "4000", resp.Total)
	assert.Len(t, f.store.MovimientosStock(p.ID), 2)
}

func TestValidarVenta(t *testing.T) {
	pid := uuid.NewString()
	base := func() dto.RegistrarVentaRequest {
		return dto.RegistrarVentaRequest{
			Items:      []dto.ItemVentaRequest{{ProductoID: pid, Cantidad: 1}},
			MetodoPago: "efectivo",
			EstadoPago: "pagado",
		}
	}
	cases := map[string]func(r *dto.RegistrarVentaRequest){
		"sin items":               func(r *dto.RegistrarVentaRequest) { r.Items = nil },
		"producto invalido":       func(r *dto.RegistrarVentaRequest) { r.Items[0].ProductoID = "x" },
		"cantidad cero":           func(r *dto.RegistrarVentaRequest) { r.Items[0].Cantidad = 0 },
		"metodo desconocido":      func(r *dto.RegistrarVentaRequest) { r.MetodoPago = "cheque" },
		"estado desconocido":      func(r *dto.RegistrarVentaRequest) { r.EstadoPago = "fiado" },
		"credito sin cliente":     func(r *dto.RegistrarVentaRequest) { r.EstadoPago = "credito" },
		"monto pagado en contado": func(r *dto.RegistrarVentaRequest) { r.MontoPagado = ptrDec("10") },
		"recibido con debito": func(r *dto.RegistrarVentaRequest) {
			r.MetodoPago = "debito"
			r.MontoRecibido = ptrDec("10")
		},
		"puntos sin cliente": func(r *dto.RegistrarVentaRequest) { r.PuntosCanje = 100 },
		"cliente y cliente nuevo": func(r *dto.RegistrarVentaRequest) {
			r.ClienteID = strPtr(uuid.NewString())
			r.ClienteNuevo = &dto.ClienteNuevoRequest{Nombre: "Ana"}
		},
		"pagado negativo": func(r *dto.RegistrarVentaRequest) {
			r.ClienteID = strPtr(uuid.NewString())
			r.EstadoPago = "credito"
			r.MontoPagado = ptrDec("-1")
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base()
			mutate(&req)
			_, err := validarVenta(req)
			assert.ErrorIs(t, err, apierror.ErrValidation)
		})
	}

	p, err := validarVenta(base())
	require.NoError(t, err)
	assert.Len(t, p.lineas, 1)
}

func TestSagaVenta_Transiciones(t *testing.T) {
	s := &sagaVenta{}
	assert.Error(t, s.avanzar(etapaCreditoAprobado), "no puede saltear etapas")
	require.NoError(t, s.avanzar(etapaStockReservado))
	require.NoError(t, s.avanzar(etapaCreditoAprobado))
	require.NoError(t, s.avanzar(etapaCajaRegistrada))
	assert.Error(t, s.avanzar(etapaCajaRegistrada))
	require.NoError(t, s.avanzar(etapaFinalizada))
	assert.Error(t, s.avanzar(etapaAbortada))
	assert.False(t, s.abortar(), "una venta finalizada no se aborta")
	assert.Equal(t, "FINALIZED", s.etapa.String())

	s = &sagaVenta{}
	require.NoError(t, s.avanzar(etapaStockReservado))
	assert.True(t, s.abortar())
	assert.Equal(t, "ABORTED", s.etapa.String())
	assert.Error(t, s.avanzar(etapaCreditoAprobado))
}

func TestObtenerYListarVentas(t *testing.T) {
	f := newFixture(t)
	f.abrirCaja(t, "0")
	c := f.cliente("10000", "0", 0)
	p := f.producto("Yerba", "2500", 10, 0)
	contado := f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: "efectivo", EstadoPago: "pagado"})
	f.vender(t, dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{item(p, 2)}, ClienteID: strPtr(c.ID.String()), MetodoPago: "efectivo", EstadoPago: "credito"})

	got, err := f.ventas.ObtenerVenta(context.Background(), uuid.MustParse(contado.ID))
	require.NoError(t, err)
	assert.Equal(t, contado.NumeroTicket, got.NumeroTicket)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Yerba", got.Items[0].Producto)

	_, err = f.ventas.ObtenerVenta(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	list, err := f.ventas.ListarVentas(context.Background(), dto.VentaFilter{EstadoPago: "credito", Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, c.ID.String(), *list.Data[0].ClienteID)

	list, err = f.ventas.ListarVentas(context.Background(), dto.VentaFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
}
