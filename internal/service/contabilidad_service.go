package service

import (
	"context"
	"math"
	"strconv"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContabilidadService is read-only. Every figure is folded from the ledgers
// (sales, returns, cash and stock movements); stored running totals are only
// ever compared against the fold, never trusted.
type ContabilidadService interface {
	// Resultado covers [desde, hasta).
	Resultado(ctx context.Context, desde, hasta time.Time) (*dto.ResultadoResponse, error)
	FlujoCaja(ctx context.Context, desde, hasta time.Time) (*dto.FlujoCajaResponse, error)
	AntiguedadDeudas(ctx context.Context, corte time.Time) (*dto.AntiguedadDeudasResponse, error)
	ValorizacionInventario(ctx context.Context) (*dto.ValorizacionResponse, error)
	Auditar(ctx context.Context) (*dto.AuditoriaResponse, error)
}

type contabilidadService struct {
	st *repository.Set
}

func NewContabilidadService(st *repository.Set) ContabilidadService {
	return &contabilidadService{st: st}
}

func (s *contabilidadService) Resultado(ctx context.Context, desde, hasta time.Time) (*dto.ResultadoResponse, error) {
	ventas, err := s.st.Ventas.ListFinalizadasEntre(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}
	devs, err := s.st.Devoluciones.ListEntre(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}

	r := &dto.ResultadoResponse{
		Desde:            desde.Format("2006-01-02"),
		Hasta:            hasta.Format("2006-01-02"),
		CantidadVentas:   len(ventas),
		VentasBrutas:     cero,
		Devoluciones:     cero,
		ImpuestoIncluido: cero,
		CostoMercaderia:  cero,
		MargenPct:        cero,
	}
	for _, v := range ventas {
		r.VentasBrutas = r.VentasBrutas.Add(v.Total)
		r.ImpuestoIncluido = r.ImpuestoIncluido.Add(v.Impuesto)
		for _, it := range v.Items {
			r.CostoMercaderia = r.CostoMercaderia.Add(it.CostoUnitario.Mul(decimal.NewFromInt(int64(it.Cantidad))))
		}
	}
	for _, d := range devs {
		r.Devoluciones = r.Devoluciones.Add(d.TotalReembolsado)
		r.CostoMercaderia = r.CostoMercaderia.Sub(d.CostoDevuelto)
	}
	r.IngresoNeto = r.VentasBrutas.Sub(r.Devoluciones)
	r.MargenBruto = r.IngresoNeto.Sub(r.CostoMercaderia)
	if r.IngresoNeto.IsPositive() {
		r.MargenPct = redondear(r.MargenBruto.Div(r.IngresoNeto).Mul(cien))
	}
	return r, nil
}

// FlujoCaja replays every movement recorded before hasta. Movements before
// desde form the opening balance. Opening floats are owner money and stay out.
func (s *contabilidadService) FlujoCaja(ctx context.Context, desde, hasta time.Time) (*dto.FlujoCajaResponse, error) {
	movs, err := s.st.Caja.ListMovimientosHasta(ctx, hasta)
	if err != nil {
		return nil, err
	}
	var previos, periodo []model.MovimientoCaja
	for _, m := range movs {
		if m.CreatedAt.Before(desde) {
			previos = append(previos, m)
		} else {
			periodo = append(periodo, m)
		}
	}
	inicial := Balance(cero, previos, nil).Neto()
	flujo := Balance(cero, periodo, nil)

	out := &dto.FlujoCajaResponse{
		Desde:        desde.Format("2006-01-02"),
		Hasta:        hasta.Format("2006-01-02"),
		SaldoInicial: inicial,
		Ingresos:     flujo.Ingresos,
		Egresos:      flujo.Egresos,
		Devoluciones: flujo.Devoluciones,
		SaldoFinal:   inicial.Add(flujo.Neto()),
		PorMetodo:    make(map[string]dto.SaldoMetodo, len(model.MetodosPago)),
	}
	for metodo, saldo := range BalancePorMetodo(cero, periodo) {
		out.PorMetodo[string(metodo)] = saldoToDTO(saldo)
	}
	return out, nil
}

var tramosAntiguedad = []struct {
	nombre string
	hasta  int // max days overdue, inclusive
}{
	{"al_dia", 0},
	{"1-30", 30},
	{"31-60", 60},
	{"61-90", 90},
	{"+90", math.MaxInt},
}

// AntiguedadDeudas buckets open debts by days past due at corte.
func (s *contabilidadService) AntiguedadDeudas(ctx context.Context, corte time.Time) (*dto.AntiguedadDeudasResponse, error) {
	deudas, err := s.st.Deudas.ListAbiertas(ctx)
	if err != nil {
		return nil, err
	}
	tramos := make([]dto.TramoAntiguedad, len(tramosAntiguedad))
	for i, t := range tramosAntiguedad {
		tramos[i] = dto.TramoAntiguedad{Tramo: t.nombre, Saldo: cero}
	}
	total := cero
	for _, d := range deudas {
		dias := diasVencida(d.FechaVencimiento, corte)
		for i, t := range tramosAntiguedad {
			if dias <= t.hasta {
				tramos[i].Cantidad++
				tramos[i].Saldo = tramos[i].Saldo.Add(d.SaldoPendiente)
				break
			}
		}
		total = total.Add(d.SaldoPendiente)
	}
	return &dto.AntiguedadDeudasResponse{Fecha: corte.Format("2006-01-02"), Tramos: tramos, Total: total}, nil
}

// diasVencida counts whole days from the due date to corte; zero or less
// means not yet due.
func diasVencida(vencimiento, corte time.Time) int {
	if !corte.After(vencimiento) {
		return 0
	}
	return int(math.Ceil(corte.Sub(vencimiento).Hours() / 24))
}

func (s *contabilidadService) ValorizacionInventario(ctx context.Context) (*dto.ValorizacionResponse, error) {
	productos, err := s.st.Productos.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.ValorizacionResponse{Items: make([]dto.ValorizacionItem, 0, len(productos)), ValorCosto: cero, ValorVenta: cero}
	for _, p := range productos {
		if p.StockActual <= 0 {
			continue
		}
		unidades := decimal.NewFromInt(int64(p.StockActual))
		valor := p.PrecioCosto.Mul(unidades)
		out.Items = append(out.Items, dto.ValorizacionItem{
			ProductoID:  p.ID.String(),
			Nombre:      p.Nombre,
			Stock:       p.StockActual,
			PrecioCosto: p.PrecioCosto,
			Valor:       valor,
		})
		out.ValorCosto = out.ValorCosto.Add(valor)
		out.ValorVenta = out.ValorVenta.Add(p.PrecioVenta.Mul(unidades))
		out.Unidades += p.StockActual
	}
	return out, nil
}

// Auditar checks the stored balances against their ledgers:
//   - stock == Σ stock movements, never negative
//   - cliente saldo_deuda == Σ open debt balances
//   - closed session monto_esperado == replayed efectivo balance
func (s *contabilidadService) Auditar(ctx context.Context) (*dto.AuditoriaResponse, error) {
	out := &dto.AuditoriaResponse{Discrepancias: []dto.Discrepancia{}}

	productos, err := s.st.Productos.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sumas, err := s.st.MovStock.SumPorProducto(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range productos {
		out.ProductosRevisados++
		if p.StockActual != sumas[p.ID] || p.StockActual < 0 {
			out.Discrepancias = append(out.Discrepancias, dto.Discrepancia{
				Tipo:       "stock",
				EntidadID:  p.ID.String(),
				Registrado: strconv.Itoa(p.StockActual),
				Calculado:  strconv.Itoa(sumas[p.ID]),
			})
		}
	}

	clientes, err := s.st.Clientes.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	abiertas, err := s.st.Deudas.ListAbiertas(ctx)
	if err != nil {
		return nil, err
	}
	porCliente := make(map[uuid.UUID]decimal.Decimal, len(clientes))
	for _, d := range abiertas {
		porCliente[d.ClienteID] = porCliente[d.ClienteID].Add(d.SaldoPendiente)
	}
	for _, c := range clientes {
		out.ClientesRevisados++
		calc := porCliente[c.ID]
		if !esCero(c.SaldoDeuda.Sub(calc)) || c.SaldoDeuda.GreaterThan(c.LimiteCredito.Add(epsilon)) {
			out.Discrepancias = append(out.Discrepancias, dto.Discrepancia{
				Tipo:       "deuda_cliente",
				EntidadID:  c.ID.String(),
				Registrado: c.SaldoDeuda.StringFixed(2),
				Calculado:  calc.StringFixed(2),
			})
		}
	}

	sesiones, err := s.st.Caja.ListSesionesCerradas(ctx)
	if err != nil {
		return nil, err
	}
	efectivo := model.MetodoEfectivo
	for _, ses := range sesiones {
		out.SesionesRevisadas++
		movs, err := s.st.Caja.ListMovimientos(ctx, ses.ID)
		if err != nil {
			return nil, err
		}
		calc := redondear(Balance(ses.MontoInicial, movs, &efectivo).Neto())
		if ses.MontoEsperado == nil || !esCero(ses.MontoEsperado.Sub(calc)) {
			registrado := "null"
			if ses.MontoEsperado != nil {
				registrado = ses.MontoEsperado.StringFixed(2)
			}
			out.Discrepancias = append(out.Discrepancias, dto.Discrepancia{
				Tipo:       "caja",
				EntidadID:  ses.ID.String(),
				Registrado: registrado,
				Calculado:  calc.StringFixed(2),
			})
		}
	}

	out.OK = len(out.Discrepancias) == 0
	return out, nil
}
