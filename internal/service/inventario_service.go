package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"smartpos/internal/apierror"
	"smartpos/internal/dto"
	"smartpos/internal/infra"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stock ledger ──────────────────────────────────────────────────────────────
// Every change to Producto.StockActual goes through here and appends exactly
// one MovimientoStock, inside the caller's transaction.

type stockLedger struct {
	productos   repository.ProductoRepository
	movimientos repository.MovimientoStockRepository
}

type lineaVenta struct {
	ProductoID uuid.UUID
	Cantidad   int
}

// lineaConsumida is one sale line after stock was taken, with the price,
// tax and cost snapshots the sale stores.
type lineaConsumida struct {
	Producto       model.Producto
	Cantidad       int
	PrecioUnitario decimal.Decimal
	AlicuotaIVA    decimal.Decimal
	CostoUnitario  decimal.Decimal
	Bruto          decimal.Decimal
	Neto           decimal.Decimal
	Impuesto       decimal.Decimal
}

type consumoStock struct {
	Lineas     []lineaConsumida // in request order
	Bruto      decimal.Decimal
	Neto       decimal.Decimal
	Impuesto   decimal.Decimal
	BajoMinimo []model.Producto // stock after the sale at or below minimum
}

// consumirTx checks and decrements stock for every line. Rows are locked in
// id order so concurrent sales over the same products cannot deadlock.
// Any shortfall aborts with OutOfStock and the caller's rollback undoes the
// lines already taken.
func (l *stockLedger) consumirTx(tx *gorm.DB, ventaID, usuarioID uuid.UUID, ticket int, lineas []lineaVenta) (*consumoStock, error) {
	orden := append([]lineaVenta(nil), lineas...)
	sort.Slice(orden, func(i, j int) bool {
		return orden[i].ProductoID.String() < orden[j].ProductoID.String()
	})

	hechas := make(map[uuid.UUID]lineaConsumida, len(lineas))
	res := &consumoStock{Bruto: cero, Neto: cero, Impuesto: cero}

	for _, ln := range orden {
		p, err := l.productos.FindByIDForUpdateTx(tx, ln.ProductoID)
		if err != nil {
			return nil, notFound(err, "producto", ln.ProductoID.String())
		}
		if !p.Activo {
			return nil, apierror.Validation("producto inactivo", map[string]any{"producto_id": p.ID.String()})
		}
		if p.StockActual < ln.Cantidad {
			return nil, apierror.OutOfStock(p.ID.String(), p.Nombre, ln.Cantidad, p.StockActual)
		}

		ref := ventaID
		if err := l.aplicarTx(tx, p, -ln.Cantidad, model.StockSalida, p.PrecioCosto, fmt.Sprintf("venta #%d", ticket), &ref, &usuarioID); err != nil {
			return nil, err
		}

		bruto := redondear(p.PrecioVenta.Mul(decimal.NewFromInt(int64(ln.Cantidad))))
		neto := desglosarIVA(bruto, p.AlicuotaIVA)
		hechas[p.ID] = lineaConsumida{
			Producto:       *p,
			Cantidad:       ln.Cantidad,
			PrecioUnitario: p.PrecioVenta,
			AlicuotaIVA:    p.AlicuotaIVA,
			CostoUnitario:  p.PrecioCosto,
			Bruto:          bruto,
			Neto:           neto,
			Impuesto:       bruto.Sub(neto),
		}
		if p.BajoMinimo() {
			res.BajoMinimo = append(res.BajoMinimo, *p)
		}
	}

	for _, ln := range lineas {
		c := hechas[ln.ProductoID]
		res.Lineas = append(res.Lineas, c)
		res.Bruto = res.Bruto.Add(c.Bruto)
		res.Neto = res.Neto.Add(c.Neto)
		res.Impuesto = res.Impuesto.Add(c.Impuesto)
	}
	return res, nil
}

// restituirTx puts returned units back at the cost they left with.
func (l *stockLedger) restituirTx(tx *gorm.DB, productoID uuid.UUID, cantidad int, costo decimal.Decimal, devolucionID, usuarioID uuid.UUID) error {
	p, err := l.productos.FindByIDForUpdateTx(tx, productoID)
	if err != nil {
		return notFound(err, "producto", productoID.String())
	}
	return l.aplicarTx(tx, p, cantidad, model.StockDevolucion, costo, "devolucion de cliente", &devolucionID, &usuarioID)
}

// aplicarTx mutates the locked product row and appends the matching movement.
// p.StockActual is updated in place.
func (l *stockLedger) aplicarTx(tx *gorm.DB, p *model.Producto, delta int, tipo model.TipoMovimientoStock,
	costo decimal.Decimal, motivo string, ref, usuarioID *uuid.UUID) error {

	nuevo := p.StockActual + delta
	if nuevo < 0 {
		return apierror.Validation("el ajuste dejaria stock negativo", map[string]any{
			"producto_id": p.ID.String(),
			"stock":       p.StockActual,
			"delta":       delta,
		})
	}
	if err := l.productos.UpdateStockTx(tx, p.ID, delta); err != nil {
		return fmt.Errorf("actualizar stock: %w", err)
	}
	mov := &model.MovimientoStock{
		ID:            uuid.New(),
		ProductoID:    p.ID,
		Tipo:          tipo,
		Cantidad:      delta,
		CostoUnitario: costo,
		StockAnterior: p.StockActual,
		StockNuevo:    nuevo,
		Motivo:        motivo,
		ReferenciaID:  ref,
		UsuarioID:     usuarioID,
	}
	if err := l.movimientos.CreateTx(tx, mov); err != nil {
		return fmt.Errorf("registrar movimiento de stock: %w", err)
	}
	p.StockActual = nuevo
	return nil
}

// ── InventarioService ─────────────────────────────────────────────────────────

type InventarioService interface {
	CrearProducto(ctx context.Context, usuarioID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	ListarProductos(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error)
	AjustarStock(ctx context.Context, usuarioID uuid.UUID, req dto.AjusteStockRequest) (*dto.MovimientoStockResponse, error)
	ListarMovimientos(ctx context.Context, filter repository.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error)
}

type inventarioService struct {
	st      *repository.Set
	ledger  *stockLedger
	metrics *infra.Metrics
}

func NewInventarioService(st *repository.Set, metrics *infra.Metrics) InventarioService {
	return &inventarioService{
		st:      st,
		ledger:  &stockLedger{productos: st.Productos, movimientos: st.MovStock},
		metrics: metrics,
	}
}

// CrearProducto registers a product; initial stock enters as an entrada
// movement so the ledger sum matches StockActual from the start.
func (s *inventarioService) CrearProducto(ctx context.Context, usuarioID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	tipo := model.TipoCategoria(req.Categoria)
	attrs, err := model.DecodeAtributos(tipo, req.Atributos)
	if err != nil {
		return nil, apierror.Validation(err.Error(), map[string]any{"campo": "atributos"})
	}
	if err := attrs.Validar(); err != nil {
		return nil, apierror.Validation(err.Error(), map[string]any{"campo": "atributos", "categoria": req.Categoria})
	}
	alicuota := decimal.NewFromInt(21)
	if req.AlicuotaIVA != nil {
		alicuota = *req.AlicuotaIVA
	}
	if alicuota.IsNegative() || alicuota.GreaterThan(cien) {
		return nil, apierror.Validation("alicuota_iva fuera de rango", map[string]any{"alicuota_iva": alicuota.String()})
	}

	p := &model.Producto{
		ID:           uuid.New(),
		CodigoBarras: strings.TrimSpace(req.CodigoBarras),
		Nombre:       strings.TrimSpace(req.Nombre),
		Descripcion:  req.Descripcion,
		Categoria:    tipo,
		Atributos:    model.Atributos{Valor: attrs},
		PrecioCosto:  req.PrecioCosto,
		PrecioVenta:  req.PrecioVenta,
		AlicuotaIVA:  alicuota,
		StockActual:  0,
		StockMinimo:  req.StockMinimo,
		Activo:       true,
	}

	err = s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.st.Productos.CreateTx(tx, p); err != nil {
			return err
		}
		if req.StockInicial > 0 {
			return s.ledger.aplicarTx(tx, p, req.StockInicial, model.StockEntrada, p.PrecioCosto, "stock inicial", nil, &usuarioID)
		}
		return nil
	})
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, apierror.Validation("codigo de barras duplicado", map[string]any{"codigo_barras": p.CodigoBarras})
		}
		return nil, err
	}
	resp := productoToResponse(p)
	return &resp, nil
}

func (s *inventarioService) ListarProductos(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error) {
	productos, total, err := s.st.Productos.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.ProductoListResponse{Data: make([]dto.ProductoResponse, 0, len(productos)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range productos {
		out.Data = append(out.Data, productoToResponse(&productos[i]))
	}
	return out, nil
}

// AjustarStock records purchases (entrada) and physical count corrections
// (ajuste). It never lets stock go negative.
func (s *inventarioService) AjustarStock(ctx context.Context, usuarioID uuid.UUID, req dto.AjusteStockRequest) (*dto.MovimientoStockResponse, error) {
	start := time.Now()
	productoID, err := uuid.Parse(req.ProductoID)
	if err != nil {
		return nil, apierror.Validation("producto_id invalido", map[string]any{"producto_id": req.ProductoID})
	}
	tipo := model.TipoMovimientoStock(req.Tipo)
	switch {
	case req.Cantidad == 0:
		return nil, apierror.Validation("cantidad no puede ser cero", nil)
	case tipo == model.StockEntrada && req.Cantidad < 0:
		return nil, apierror.Validation("una entrada debe ser positiva", map[string]any{"cantidad": req.Cantidad})
	case tipo != model.StockEntrada && tipo != model.StockAjuste:
		return nil, apierror.Validation("tipo de movimiento no permitido", map[string]any{"tipo": req.Tipo})
	}

	var resp dto.MovimientoStockResponse
	err = s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := s.st.Productos.FindByIDForUpdateTx(tx, productoID)
		if err != nil {
			return notFound(err, "producto", req.ProductoID)
		}
		anterior := p.StockActual
		if err := s.ledger.aplicarTx(tx, p, req.Cantidad, tipo, p.PrecioCosto, req.Motivo, nil, &usuarioID); err != nil {
			return err
		}
		resp = dto.MovimientoStockResponse{
			ProductoID:    p.ID.String(),
			Tipo:          string(tipo),
			Cantidad:      req.Cantidad,
			CostoUnitario: p.PrecioCosto,
			StockAnterior: anterior,
			StockNuevo:    p.StockActual,
			Motivo:        req.Motivo,
			CreatedAt:     fechaISO(time.Now()),
		}
		return nil
	})
	s.metrics.ObserveOperacion("ajustar_stock", start, err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("producto_id", resp.ProductoID).Int("delta", req.Cantidad).Str("tipo", resp.Tipo).Msg("stock ajustado")
	return &resp, nil
}

func (s *inventarioService) ListarMovimientos(ctx context.Context, filter repository.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error) {
	movs, total, err := s.st.MovStock.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.MovimientoStockListResponse{Data: make([]dto.MovimientoStockResponse, 0, len(movs)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for _, m := range movs {
		out.Data = append(out.Data, dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			ProductoID:    m.ProductoID.String(),
			Tipo:          string(m.Tipo),
			Cantidad:      m.Cantidad,
			CostoUnitario: m.CostoUnitario,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			ReferenciaID:  ptrString(m.ReferenciaID),
			CreatedAt:     fechaISO(m.CreatedAt),
		})
	}
	return out, nil
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:           p.ID.String(),
		CodigoBarras: p.CodigoBarras,
		Nombre:       p.Nombre,
		Descripcion:  p.Descripcion,
		Categoria:    string(p.Categoria),
		Atributos:    p.Atributos.Valor,
		PrecioCosto:  p.PrecioCosto,
		PrecioVenta:  p.PrecioVenta,
		AlicuotaIVA:  p.AlicuotaIVA,
		StockActual:  p.StockActual,
		StockMinimo:  p.StockMinimo,
		Activo:       p.Activo,
	}
}
