package service

import (
	"context"
	"fmt"
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

type VentaService interface {
	RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	st       *repository.Set
	stock    *stockLedger
	credito  *credito
	lealtad  *lealtadService
	registro *registroCaja
	notif    *notificador
	metrics  *infra.Metrics
	clock    func() time.Time
}

func NewVentaService(st *repository.Set, reglas Reglas, metrics *infra.Metrics) VentaService {
	return newVentaService(st, reglas, metrics)
}

func newVentaService(st *repository.Set, reglas Reglas, metrics *infra.Metrics) *ventaService {
	return &ventaService{
		st:       st,
		stock:    &stockLedger{productos: st.Productos, movimientos: st.MovStock},
		credito:  &credito{clientes: st.Clientes, deudas: st.Deudas, diasGraciaDefault: reglas.DiasGraciaDefault},
		lealtad:  newLealtad(st, reglas.Lealtad),
		registro: &registroCaja{caja: st.Caja},
		notif:    &notificador{eventos: st.Eventos},
		metrics:  metrics,
		clock:    time.Now,
	}
}

// ── Sale saga ─────────────────────────────────────────────────────────────────
// Every step runs inside one transaction, so aborting is just rolling back.
// The saga only tracks which step is running and refuses out-of-order moves.

type etapaVenta int

const (
	etapaBorrador etapaVenta = iota
	etapaStockReservado
	etapaCreditoAprobado
	etapaCajaRegistrada
	etapaFinalizada
	etapaAbortada
)

func (e etapaVenta) String() string {
	switch e {
	case etapaBorrador:
		return "DRAFT"
	case etapaStockReservado:
		return "STOCK_RESERVED"
	case etapaCreditoAprobado:
		return "CREDIT_CLEARED"
	case etapaCajaRegistrada:
		return "CASH_RECORDED"
	case etapaFinalizada:
		return "FINALIZED"
	default:
		return "ABORTED"
	}
}

type sagaVenta struct {
	etapa etapaVenta
}

func (s *sagaVenta) avanzar(a etapaVenta) error {
	if s.etapa == etapaFinalizada || s.etapa == etapaAbortada || a != s.etapa+1 || a == etapaAbortada {
		return fmt.Errorf("transicion de venta invalida: %s -> %s", s.etapa, a)
	}
	s.etapa = a
	return nil
}

// abortar is valid from any state except FINALIZED.
func (s *sagaVenta) abortar() bool {
	if s.etapa == etapaFinalizada {
		return false
	}
	s.etapa = etapaAbortada
	return true
}

// ── Validation ────────────────────────────────────────────────────────────────

// pedidoVenta is a request that passed every check that needs no store access.
type pedidoVenta struct {
	lineas        []lineaVenta
	clienteID     *uuid.UUID
	clienteNuevo  *dto.ClienteNuevoRequest
	metodo        model.MetodoPago
	estadoPago    model.EstadoPago
	montoPagado   *decimal.Decimal
	montoRecibido *decimal.Decimal
	puntos        int64
}

func (p *pedidoVenta) tieneCliente() bool { return p.clienteID != nil || p.clienteNuevo != nil }

func validarVenta(req dto.RegistrarVentaRequest) (*pedidoVenta, error) {
	if len(req.Items) == 0 {
		return nil, apierror.Validation("la venta no tiene items", nil)
	}
	p := &pedidoVenta{
		metodo:        model.MetodoPago(req.MetodoPago),
		estadoPago:    model.EstadoPago(req.EstadoPago),
		montoPagado:   req.MontoPagado,
		montoRecibido: req.MontoRecibido,
		puntos:        req.PuntosCanje,
		clienteNuevo:  req.ClienteNuevo,
	}

	// duplicate lines of the same product are merged
	indice := make(map[uuid.UUID]int, len(req.Items))
	for i, it := range req.Items {
		id, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, apierror.Validation("producto_id invalido", map[string]any{"item": i, "producto_id": it.ProductoID})
		}
		if it.Cantidad <= 0 {
			return nil, apierror.Validation("la cantidad debe ser mayor a cero", map[string]any{"item": i, "cantidad": it.Cantidad})
		}
		if j, ok := indice[id]; ok {
			p.lineas[j].Cantidad += it.Cantidad
			continue
		}
		indice[id] = len(p.lineas)
		p.lineas = append(p.lineas, lineaVenta{ProductoID: id, Cantidad: it.Cantidad})
	}

	if !p.metodo.Valido() {
		return nil, apierror.Validation("metodo de pago invalido", map[string]any{"metodo_pago": req.MetodoPago})
	}
	if p.estadoPago != model.EstadoPagoPagado && p.estadoPago != model.EstadoPagoCredito {
		return nil, apierror.Validation("estado de pago invalido", map[string]any{"estado_pago": req.EstadoPago})
	}
	if req.ClienteID != nil {
		if req.ClienteNuevo != nil {
			return nil, apierror.Validation("cliente_id y cliente_nuevo son excluyentes", nil)
		}
		id, err := uuid.Parse(*req.ClienteID)
		if err != nil {
			return nil, apierror.Validation("cliente_id invalido", map[string]any{"cliente_id": *req.ClienteID})
		}
		p.clienteID = &id
	}
	if req.ClienteNuevo != nil && req.ClienteNuevo.LimiteCredito.IsNegative() {
		return nil, apierror.Validation("limite_credito no puede ser negativo", nil)
	}
	if p.estadoPago == model.EstadoPagoCredito && !p.tieneCliente() {
		return nil, apierror.Validation("una venta a credito requiere cliente", nil)
	}
	if p.montoPagado != nil {
		if p.estadoPago != model.EstadoPagoCredito {
			return nil, apierror.Validation("monto_pagado solo aplica a ventas a credito", nil)
		}
		if p.montoPagado.IsNegative() {
			return nil, apierror.Validation("monto_pagado no puede ser negativo", map[string]any{"monto_pagado": p.montoPagado.String()})
		}
	}
	if p.montoRecibido != nil {
		if p.metodo != model.MetodoEfectivo {
			return nil, apierror.Validation("monto_recibido solo aplica a pagos en efectivo", nil)
		}
		if p.montoRecibido.IsNegative() {
			return nil, apierror.Validation("monto_recibido no puede ser negativo", nil)
		}
	}
	if p.puntos < 0 {
		return nil, apierror.Validation("puntos_canje no puede ser negativo", nil)
	}
	if p.puntos > 0 && !p.tieneCliente() {
		return nil, apierror.Validation("el canje de puntos requiere cliente", nil)
	}
	return p, nil
}

// ── RegistrarVenta ────────────────────────────────────────────────────────────
// One transaction:
//   1. resolve (lock or create) the customer
//   2. provisional venta + stock consumption              DRAFT → STOCK_RESERVED
//   3. points redemption, totals
//   4. credit for the unpaid part                         → CREDIT_CLEARED
//   5. cash movements on the user's open register         → CASH_RECORDED
//   6. outbox: loyalty accrual, low-stock alerts
//   7. finalize header + items                            → FINALIZED
// After commit the accrual is applied best effort; the outbox relay retries it.

func (s *ventaService) RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	start := time.Now()
	pedido, err := validarVenta(req)
	if err != nil {
		s.metrics.ObserveOperacion("registrar_venta", start, err)
		return nil, err
	}

	saga := &sagaVenta{}
	var (
		venta      *model.Venta
		deuda      *model.Deuda
		canje      resultadoCanje
		puntosAcum int64
		claveAcum  string
	)
	nombres := make(map[uuid.UUID]string, len(pedido.lineas))

	err = s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		ahora := s.clock()

		cliente, err := s.resolverClienteTx(tx, pedido, ahora)
		if err != nil {
			return err
		}

		ticket, err := s.st.Ventas.NextTicketNumber(tx)
		if err != nil {
			return fmt.Errorf("numero de ticket: %w", err)
		}
		venta = &model.Venta{
			ID:           uuid.New(),
			NumeroTicket: ticket,
			UsuarioID:    usuarioID,
			MetodoPago:   pedido.metodo,
			EstadoPago:   pedido.estadoPago,
			Estado:       model.VentaBorrador,
			CreatedAt:    ahora,
			UpdatedAt:    ahora,
		}
		if cliente != nil {
			venta.ClienteID = &cliente.ID
		}
		if err := s.st.Ventas.CreateTx(tx, venta); err != nil {
			return fmt.Errorf("crear venta: %w", err)
		}

		consumo, err := s.stock.consumirTx(tx, venta.ID, usuarioID, ticket, pedido.lineas)
		if err != nil {
			return err
		}
		if err := saga.avanzar(etapaStockReservado); err != nil {
			return err
		}
		for _, ln := range consumo.Lineas {
			nombres[ln.Producto.ID] = ln.Producto.Nombre
		}

		canje, err = s.lealtad.canjearTx(tx, cliente, pedido.puntos, consumo.Bruto, venta.ID)
		if err != nil {
			return err
		}
		s.calcularTotales(venta, consumo, canje)

		if err := s.liquidarTx(tx, venta, pedido, cliente, &deuda, ahora); err != nil {
			return err
		}
		if err := saga.avanzar(etapaCreditoAprobado); err != nil {
			return err
		}

		if err := s.registrarCobroTx(tx, venta, pedido, usuarioID, ahora); err != nil {
			return err
		}
		if err := saga.avanzar(etapaCajaRegistrada); err != nil {
			return err
		}

		if cliente != nil && venta.EstadoPago == model.EstadoPagoPagado {
			claveAcum = claveAcumulacionVenta(venta.ID)
			puntosAcum, err = s.lealtad.programarAcumulacionTx(tx, claveAcum, cliente.ID, venta.MontoPagado, venta.ID)
			if err != nil {
				return err
			}
		}
		for _, p := range consumo.BajoMinimo {
			if err := s.notif.programarAlertaTx(tx, p, venta.ID, ahora); err != nil {
				return err
			}
		}

		venta.Items = make([]model.VentaItem, 0, len(consumo.Lineas))
		for _, ln := range consumo.Lineas {
			venta.Items = append(venta.Items, model.VentaItem{
				ID:             uuid.New(),
				VentaID:        venta.ID,
				ProductoID:     ln.Producto.ID,
				Cantidad:       ln.Cantidad,
				PrecioUnitario: ln.PrecioUnitario,
				CostoUnitario:  ln.CostoUnitario,
				AlicuotaIVA:    ln.AlicuotaIVA,
				Neto:           ln.Neto,
				Impuesto:       ln.Impuesto,
				Subtotal:       ln.Bruto,
			})
		}
		if err := s.st.Ventas.CreateItemsTx(tx, venta.Items); err != nil {
			return fmt.Errorf("crear items: %w", err)
		}
		venta.Estado = model.VentaFinalizada
		if err := s.st.Ventas.UpdateTx(tx, venta); err != nil {
			return fmt.Errorf("finalizar venta: %w", err)
		}
		return saga.avanzar(etapaFinalizada)
	})
	s.metrics.ObserveOperacion("registrar_venta", start, err)
	if err != nil {
		saga.abortar()
		log.Warn().Err(err).Str("usuario_id", usuarioID.String()).Str("etapa", saga.etapa.String()).Msg("venta abortada")
		return nil, err
	}

	if puntosAcum > 0 {
		if err := s.lealtad.AplicarAcumulacion(ctx, claveAcum); err != nil {
			log.Warn().Err(err).Str("clave", claveAcum).Msg("acumulacion de puntos diferida al relay")
		}
	}

	log.Info().Str("venta_id", venta.ID.String()).Int("ticket", venta.NumeroTicket).
		Str("total", venta.Total.StringFixed(2)).Str("estado_pago", string(venta.EstadoPago)).Msg("venta registrada")

	resp := ventaToResponse(venta, nombres)
	resp.PuntosSolicitados = canje.Solicitados
	resp.PuntosAcumulados = puntosAcum
	if deuda != nil {
		id := deuda.ID.String()
		venc := fechaISO(deuda.FechaVencimiento)
		resp.DeudaID = &id
		resp.FechaVencimiento = &venc
	}
	return &resp, nil
}

// resolverClienteTx locks an existing customer or creates the new one inside
// the sale transaction. Returns nil for anonymous sales.
func (s *ventaService) resolverClienteTx(tx *gorm.DB, p *pedidoVenta, ahora time.Time) (*model.Cliente, error) {
	switch {
	case p.clienteID != nil:
		c, err := s.st.Clientes.FindByIDForUpdateTx(tx, *p.clienteID)
		if err != nil {
			return nil, notFound(err, "cliente", p.clienteID.String())
		}
		if !c.Activo {
			return nil, apierror.Validation("cliente inactivo", map[string]any{"cliente_id": c.ID.String()})
		}
		return c, nil
	case p.clienteNuevo != nil:
		n := p.clienteNuevo
		dias := s.credito.diasGraciaDefault
		if n.DiasGracia != nil {
			dias = *n.DiasGracia
		}
		c := &model.Cliente{
			ID:            uuid.New(),
			Nombre:        n.Nombre,
			Documento:     n.Documento,
			Email:         n.Email,
			Telefono:      n.Telefono,
			LimiteCredito: redondear(n.LimiteCredito),
			SaldoDeuda:    cero,
			DiasGracia:    dias,
			Activo:        true,
			CreatedAt:     ahora,
			UpdatedAt:     ahora,
		}
		if err := s.st.Clientes.CreateTx(tx, c); err != nil {
			if infra.IsUniqueViolation(err) {
				return nil, apierror.Validation("ya existe un cliente con ese documento", map[string]any{"documento": n.Documento})
			}
			return nil, fmt.Errorf("crear cliente: %w", err)
		}
		return c, nil
	}
	return nil, nil
}

// calcularTotales applies the points discount proportionally to the net and
// tax parts, so Subtotal + Impuesto == Total.
func (s *ventaService) calcularTotales(v *model.Venta, c *consumoStock, canje resultadoCanje) {
	v.TotalBruto = c.Bruto
	v.DescuentoPuntos = canje.Descuento
	v.PuntosCanjeados = canje.Canjeados
	v.Total = redondear(c.Bruto.Sub(canje.Descuento))
	v.Subtotal = c.Neto
	if !canje.Descuento.IsZero() && c.Bruto.IsPositive() {
		v.Subtotal = redondear(c.Neto.Mul(v.Total).Div(c.Bruto))
	}
	v.Impuesto = v.Total.Sub(v.Subtotal)
}

// liquidarTx decides how much is paid now and opens a debt for the rest.
func (s *ventaService) liquidarTx(tx *gorm.DB, v *model.Venta, p *pedidoVenta, cliente *model.Cliente, deuda **model.Deuda, ahora time.Time) error {
	if v.EstadoPago == model.EstadoPagoPagado {
		v.MontoPagado = v.Total
		return nil
	}
	pagado := cero
	if p.montoPagado != nil {
		pagado = redondear(*p.montoPagado)
	}
	if pagado.GreaterThan(v.Total) {
		return apierror.Validation("monto_pagado supera el total de la venta", map[string]any{
			"monto_pagado": pagado.StringFixed(2),
			"total":        v.Total.StringFixed(2),
		})
	}
	v.MontoPagado = pagado
	d, err := s.credito.extenderTx(tx, cliente, v.ID, v.Total.Sub(pagado), ahora)
	if err != nil {
		return err
	}
	*deuda = d
	return nil
}

// registrarCobroTx records what was collected at the counter. Cash tendered
// is recorded in full and the change goes out as a separate vuelto movement.
func (s *ventaService) registrarCobroTx(tx *gorm.DB, v *model.Venta, p *pedidoVenta, usuarioID uuid.UUID, ahora time.Time) error {
	recibido := v.MontoPagado
	if p.montoRecibido != nil {
		recibido = redondear(*p.montoRecibido)
		if recibido.LessThan(v.MontoPagado) {
			return apierror.Validation("monto_recibido menor al monto a pagar", map[string]any{
				"monto_recibido": recibido.StringFixed(2),
				"monto_a_pagar":  v.MontoPagado.StringFixed(2),
			})
		}
	}
	v.MontoRecibido = recibido
	v.Vuelto = recibido.Sub(v.MontoPagado)
	if !v.MontoPagado.IsPositive() {
		v.MontoRecibido = cero
		v.Vuelto = cero
		return nil
	}

	sesion, err := s.registro.sesionAbiertaTx(tx, usuarioID, repository.LockShare)
	if err != nil {
		return err
	}
	v.SesionCajaID = &sesion.ID
	ref := v.ID
	if err := s.registro.registrarTx(tx, sesion, &model.MovimientoCaja{
		Tipo:         model.CajaVenta,
		MetodoPago:   v.MetodoPago,
		Monto:        recibido,
		Descripcion:  fmt.Sprintf("venta #%d", v.NumeroTicket),
		ReferenciaID: &ref,
		UsuarioID:    usuarioID,
	}, ahora); err != nil {
		return err
	}
	if v.Vuelto.IsPositive() {
		return s.registro.registrarTx(tx, sesion, &model.MovimientoCaja{
			Tipo:         model.CajaVuelto,
			MetodoPago:   v.MetodoPago,
			Monto:        v.Vuelto,
			Descripcion:  fmt.Sprintf("vuelto venta #%d", v.NumeroTicket),
			ReferenciaID: &ref,
			UsuarioID:    usuarioID,
		}, ahora)
	}
	return nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.st.Ventas.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "venta", id.String())
	}
	resp := ventaToResponse(v, nil)
	return &resp, nil
}

func (s *ventaService) ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	ventas, total, err := s.st.Ventas.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.VentaListResponse{Data: make([]dto.VentaResponse, 0, len(ventas)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range ventas {
		out.Data = append(out.Data, ventaToResponse(&ventas[i], nil))
	}
	return out, nil
}

// ventaToResponse takes product names from the preloaded Producto or, for a
// sale just registered, from nombres.
func ventaToResponse(v *model.Venta, nombres map[uuid.UUID]string) dto.VentaResponse {
	items := make([]dto.ItemVentaResponse, 0, len(v.Items))
	for _, it := range v.Items {
		nombre := nombres[it.ProductoID]
		if it.Producto != nil {
			nombre = it.Producto.Nombre
		}
		items = append(items, dto.ItemVentaResponse{
			ProductoID:       it.ProductoID.String(),
			Producto:         nombre,
			Cantidad:         it.Cantidad,
			CantidadDevuelta: it.CantidadDevuelta,
			PrecioUnitario:   it.PrecioUnitario,
			AlicuotaIVA:      it.AlicuotaIVA,
			Neto:             it.Neto,
			Impuesto:         it.Impuesto,
			Subtotal:         it.Subtotal,
		})
	}
	return dto.VentaResponse{
		ID:              v.ID.String(),
		NumeroTicket:    v.NumeroTicket,
		ClienteID:       ptrString(v.ClienteID),
		SesionCajaID:    ptrString(v.SesionCajaID),
		Items:           items,
		TotalBruto:      v.TotalBruto,
		PuntosCanjeados: v.PuntosCanjeados,
		DescuentoPuntos: v.DescuentoPuntos,
		Subtotal:        v.Subtotal,
		Impuesto:        v.Impuesto,
		Total:           v.Total,
		MetodoPago:      string(v.MetodoPago),
		EstadoPago:      string(v.EstadoPago),
		MontoPagado:     v.MontoPagado,
		MontoPendiente:  v.Total.Sub(v.MontoPagado),
		MontoRecibido:   v.MontoRecibido,
		Vuelto:          v.Vuelto,
		TotalDevuelto:   v.TotalDevuelto,
		Estado:          string(v.Estado),
		CreatedAt:       fechaISO(v.CreatedAt),
	}
}
