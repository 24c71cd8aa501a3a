package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

type DevolucionService interface {
	RegistrarDevolucion(ctx context.Context, usuarioID, ventaID uuid.UUID, req dto.RegistrarDevolucionRequest) (*dto.DevolucionResponse, error)
}

type devolucionService struct {
	st       *repository.Set
	stock    *stockLedger
	credito  *credito
	lealtad  *lealtadService
	registro *registroCaja
	metrics  *infra.Metrics
	clock    func() time.Time
}

func NewDevolucionService(st *repository.Set, reglas Reglas, metrics *infra.Metrics) DevolucionService {
	return &devolucionService{
		st:       st,
		stock:    &stockLedger{productos: st.Productos, movimientos: st.MovStock},
		credito:  &credito{clientes: st.Clientes, deudas: st.Deudas, diasGraciaDefault: reglas.DiasGraciaDefault},
		lealtad:  newLealtad(st, reglas.Lealtad),
		registro: &registroCaja{caja: st.Caja},
		metrics:  metrics,
		clock:    time.Now,
	}
}

type lineaDevolucion struct {
	item     *model.VentaItem
	cantidad int
	monto    decimal.Decimal
}

// RegistrarDevolucion returns units of a finalized sale.
//
// The refund of a line is its gross amount scaled by the sale's points
// discount; returning everything still pending refunds exactly what is left
// of the total. On a credit sale the refund first lowers the open debt and
// only the excess goes back as cash. Locks: venta, cliente, deuda, productos
// (id order), register.
func (s *devolucionService) RegistrarDevolucion(ctx context.Context, usuarioID, ventaID uuid.UUID, req dto.RegistrarDevolucionRequest) (*dto.DevolucionResponse, error) {
	start := time.Now()
	pedidas, err := agruparDevolucion(req)
	if err != nil {
		return nil, err
	}

	var dev *model.Devolucion
	err = s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		ahora := s.clock()
		venta, err := s.st.Ventas.FindByIDForUpdateTx(tx, ventaID)
		if err != nil {
			return notFound(err, "venta", ventaID.String())
		}
		if venta.Estado != model.VentaFinalizada {
			return apierror.NotFound("venta", ventaID.String())
		}

		var cliente *model.Cliente
		if venta.ClienteID != nil {
			if cliente, err = s.st.Clientes.FindByIDForUpdateTx(tx, *venta.ClienteID); err != nil {
				return notFound(err, "cliente", venta.ClienteID.String())
			}
		}

		lineas, reembolso, err := prorratear(venta, pedidas)
		if err != nil {
			return err
		}

		dev = &model.Devolucion{
			ID:               uuid.New(),
			VentaID:          venta.ID,
			UsuarioID:        usuarioID,
			Motivo:           req.Motivo,
			TotalReembolsado: reembolso,
			DeudaReducida:    cero,
			CostoDevuelto:    cero,
			CreatedAt:        ahora,
		}

		efectivo := reembolso
		if venta.EstadoPago == model.EstadoPagoCredito {
			deuda, err := s.st.Deudas.FindByVentaIDForUpdateTx(tx, venta.ID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil && deuda.Abierta() {
				reducido := minDec(reembolso, deuda.SaldoPendiente)
				if _, err := s.credito.reducirTx(tx, deuda, cliente, reducido, ahora); err != nil {
					return err
				}
				dev.DeudaReducida = reducido
				efectivo = reembolso.Sub(reducido)
			}
		}
		dev.EfectivoReembolsado = efectivo

		for _, ln := range ordenarPorProducto(lineas) {
			if err := s.stock.restituirTx(tx, ln.item.ProductoID, ln.cantidad, ln.item.CostoUnitario, dev.ID, usuarioID); err != nil {
				return err
			}
		}

		if efectivo.IsPositive() {
			sesion, err := s.registro.sesionAbiertaTx(tx, usuarioID, repository.LockShare)
			if err != nil {
				return err
			}
			ref := dev.ID
			if err := s.registro.registrarTx(tx, sesion, &model.MovimientoCaja{
				Tipo:         model.CajaDevolucion,
				MetodoPago:   venta.MetodoPago,
				Monto:        efectivo,
				Descripcion:  fmt.Sprintf("devolucion venta #%d", venta.NumeroTicket),
				ReferenciaID: &ref,
				UsuarioID:    usuarioID,
			}, ahora); err != nil {
				return err
			}
		}

		if dev.PuntosRevertidos, err = s.lealtad.revertirTx(tx, venta, cliente, reembolso, dev.ID); err != nil {
			return err
		}

		for _, ln := range lineas {
			ln.item.CantidadDevuelta += ln.cantidad
			if err := s.st.Ventas.UpdateItemDevueltoTx(tx, ln.item.ID, ln.item.CantidadDevuelta); err != nil {
				return err
			}
			costo := ln.item.CostoUnitario.Mul(decimal.NewFromInt(int64(ln.cantidad)))
			dev.CostoDevuelto = dev.CostoDevuelto.Add(costo)
			dev.Items = append(dev.Items, model.DevolucionItem{
				ID:            uuid.New(),
				DevolucionID:  dev.ID,
				VentaItemID:   ln.item.ID,
				ProductoID:    ln.item.ProductoID,
				Cantidad:      ln.cantidad,
				CostoUnitario: ln.item.CostoUnitario,
				Monto:         ln.monto,
			})
		}
		venta.TotalDevuelto = venta.TotalDevuelto.Add(reembolso)
		venta.UpdatedAt = ahora
		if err := s.st.Ventas.UpdateTx(tx, venta); err != nil {
			return err
		}
		return s.st.Devoluciones.CreateTx(tx, dev)
	})
	s.metrics.ObserveOperacion("registrar_devolucion", start, err)
	if err != nil {
		return nil, err
	}

	log.Info().Str("venta_id", ventaID.String()).Str("devolucion_id", dev.ID.String()).
		Str("reembolso", dev.TotalReembolsado.StringFixed(2)).Msg("devolucion registrada")
	return devolucionToResponse(dev), nil
}

// agruparDevolucion validates the request and merges repeated products.
func agruparDevolucion(req dto.RegistrarDevolucionRequest) (map[uuid.UUID]int, error) {
	if len(req.Items) == 0 {
		return nil, apierror.Validation("la devolucion no tiene items", nil)
	}
	out := make(map[uuid.UUID]int, len(req.Items))
	for i, it := range req.Items {
		id, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, apierror.Validation("producto_id invalido", map[string]any{"item": i, "producto_id": it.ProductoID})
		}
		if it.Cantidad <= 0 {
			return nil, apierror.Validation("la cantidad debe ser mayor a cero", map[string]any{"item": i, "cantidad": it.Cantidad})
		}
		out[id] += it.Cantidad
	}
	return out, nil
}

// prorratear matches requested products against the sale lines and computes
// each line's refund.
func prorratear(venta *model.Venta, pedidas map[uuid.UUID]int) ([]lineaDevolucion, decimal.Decimal, error) {
	porProducto := make(map[uuid.UUID]*model.VentaItem, len(venta.Items))
	for i := range venta.Items {
		porProducto[venta.Items[i].ProductoID] = &venta.Items[i]
	}

	factor := venta.FactorDescuento()
	lineas := make([]lineaDevolucion, 0, len(pedidas))
	total := cero
	for productoID, cant := range pedidas {
		item, ok := porProducto[productoID]
		if !ok {
			return nil, cero, apierror.Validation("el producto no pertenece a la venta", map[string]any{"producto_id": productoID.String()})
		}
		if cant > item.Pendiente() {
			return nil, cero, apierror.Validation("cantidad a devolver supera lo vendido", map[string]any{
				"producto_id": productoID.String(),
				"solicitado":  cant,
				"disponible":  item.Pendiente(),
			})
		}
		monto := redondear(item.PrecioUnitario.Mul(decimal.NewFromInt(int64(cant))).Mul(factor))
		lineas = append(lineas, lineaDevolucion{item: item, cantidad: cant, monto: monto})
		total = total.Add(monto)
	}

	restante := venta.Total.Sub(venta.TotalDevuelto)
	if devuelveTodo(venta, pedidas) || total.GreaterThan(restante) {
		// absorb rounding residue on the last line so the sale refunds its exact total
		lineas = ordenarPorProducto(lineas)
		ultimo := &lineas[len(lineas)-1]
		ultimo.monto = ultimo.monto.Add(restante.Sub(total))
		total = restante
	}
	return ordenarPorProducto(lineas), total, nil
}

func devuelveTodo(venta *model.Venta, pedidas map[uuid.UUID]int) bool {
	for _, it := range venta.Items {
		if it.Pendiente() != pedidas[it.ProductoID] {
			return false
		}
	}
	return true
}

func ordenarPorProducto(lineas []lineaDevolucion) []lineaDevolucion {
	sort.Slice(lineas, func(i, j int) bool {
		return lineas[i].item.ProductoID.String() < lineas[j].item.ProductoID.String()
	})
	return lineas
}

func devolucionToResponse(d *model.Devolucion) *dto.DevolucionResponse {
	resp := &dto.DevolucionResponse{
		ID:                  d.ID.String(),
		VentaID:             d.VentaID.String(),
		Items:               make([]dto.ItemDevolucionResponse, 0, len(d.Items)),
		TotalReembolsado:    d.TotalReembolsado,
		DeudaReducida:       d.DeudaReducida,
		EfectivoReembolsado: d.EfectivoReembolsado,
		PuntosRevertidos:    d.PuntosRevertidos,
		CreatedAt:           fechaISO(d.CreatedAt),
	}
	for _, it := range d.Items {
		resp.Items = append(resp.Items, dto.ItemDevolucionResponse{
			ProductoID: it.ProductoID.String(),
			Cantidad:   it.Cantidad,
			Monto:      it.Monto,
		})
	}
	return resp
}
