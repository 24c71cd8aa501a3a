package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartpos/internal/apierror"
	"smartpos/internal/config"
	"smartpos/internal/dto"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LealtadService applies scheduled point accruals. Accruals are written to
// the outbox by the sale and debt-payment transactions and applied after
// commit, either inline or by the outbox relay.
type LealtadService interface {
	// AplicarAcumulacion credits the points of the accrual identified by clave.
	// Applying the same clave twice is a no-op.
	AplicarAcumulacion(ctx context.Context, clave string) error
	PuntosPorMonto(monto decimal.Decimal) int64
}

type lealtadService struct {
	st    *repository.Set
	cfg   config.Lealtad
	clock func() time.Time
}

func NewLealtadService(st *repository.Set, cfg config.Lealtad) LealtadService {
	return newLealtad(st, cfg)
}

func newLealtad(st *repository.Set, cfg config.Lealtad) *lealtadService {
	return &lealtadService{st: st, cfg: cfg, clock: time.Now}
}

func claveAcumulacionVenta(ventaID uuid.UUID) string {
	return "acumular_puntos:venta:" + ventaID.String()
}

func claveAcumulacionDeuda(deudaID uuid.UUID) string {
	return "acumular_puntos:deuda:" + deudaID.String()
}

// PuntosPorMonto = floor(monto / divisor).
func (l *lealtadService) PuntosPorMonto(monto decimal.Decimal) int64 {
	if !monto.IsPositive() || !l.cfg.Divisor.IsPositive() {
		return 0
	}
	return monto.Div(l.cfg.Divisor).Floor().IntPart()
}

type resultadoCanje struct {
	Solicitados int64
	Canjeados   int64
	Descuento   decimal.Decimal
}

// canjearTx redeems points against a sale total. Requests under the minimum
// redeem nothing and are not an error.
func (l *lealtadService) canjearTx(tx *gorm.DB, cliente *model.Cliente, puntos int64, total decimal.Decimal, ventaID uuid.UUID) (resultadoCanje, error) {
	res := resultadoCanje{Solicitados: puntos, Descuento: cero}
	if puntos <= 0 || puntos < l.cfg.MinimoCanje || cliente == nil {
		return res, nil
	}
	if puntos > cliente.PuntosSaldo {
		return res, apierror.Validation("puntos insuficientes", map[string]any{
			"solicitados": puntos,
			"disponibles": cliente.PuntosSaldo,
		})
	}
	descuento := l.cfg.ValorPunto.Mul(decimal.NewFromInt(puntos))
	if descuento.GreaterThan(total) {
		return res, apierror.Validation("el descuento por puntos supera el total de la venta", map[string]any{
			"descuento": descuento.StringFixed(2),
			"total":     total.StringFixed(2),
		})
	}

	cliente.PuntosSaldo -= puntos
	if err := l.st.Clientes.UpdateTx(tx, cliente); err != nil {
		return res, fmt.Errorf("actualizar puntos: %w", err)
	}
	ref := ventaID
	if err := l.st.Puntos.CreateTx(tx, &model.MovimientoPuntos{
		ID:           uuid.New(),
		ClienteID:    cliente.ID,
		Tipo:         model.PuntosCanje,
		Puntos:       -puntos,
		ReferenciaID: &ref,
		CreatedAt:    l.clock(),
	}); err != nil {
		return res, fmt.Errorf("registrar canje: %w", err)
	}
	res.Canjeados = puntos
	res.Descuento = descuento
	return res, nil
}

// programarAcumulacionTx writes the accrual to the outbox. Returns the
// scheduled points; zero means nothing was written.
func (l *lealtadService) programarAcumulacionTx(tx *gorm.DB, clave string, clienteID uuid.UUID, monto decimal.Decimal, ref uuid.UUID) (int64, error) {
	puntos := l.PuntosPorMonto(monto)
	if puntos <= 0 {
		return 0, nil
	}
	payload, err := json.Marshal(dto.AcumulacionPuntos{
		ClienteID:    clienteID.String(),
		Puntos:       puntos,
		ReferenciaID: ref.String(),
	})
	if err != nil {
		return 0, err
	}
	ahora := l.clock()
	if err := l.st.Eventos.CreateTx(tx, &model.EventoPendiente{
		ID:          uuid.New(),
		Tipo:        model.EventoAcumularPuntos,
		Clave:       clave,
		Payload:     string(payload),
		Estado:      model.EventoPendienteEstado,
		NextRetryAt: ahora,
		CreatedAt:   ahora,
	}); err != nil {
		return 0, fmt.Errorf("programar acumulacion: %w", err)
	}
	return puntos, nil
}

// AplicarAcumulacion locks the customer before the outbox row, the same order
// a return uses, so the two never deadlock.
func (l *lealtadService) AplicarAcumulacion(ctx context.Context, clave string) error {
	return l.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		ev, err := l.st.Eventos.FindByClaveTx(tx, clave, repository.LockNone)
		if err != nil {
			return notFound(err, "evento", clave)
		}
		if ev.Estado == model.EventoProcesado {
			return nil
		}
		p, err := decodeAcumulacion(ev)
		if err != nil {
			return err
		}
		cliente, err := l.st.Clientes.FindByIDForUpdateTx(tx, p.clienteID)
		if err != nil {
			return notFound(err, "cliente", p.clienteID.String())
		}
		if ev, err = l.st.Eventos.FindByClaveTx(tx, clave, repository.LockUpdate); err != nil {
			return err
		}
		return l.aplicarEventoTx(tx, ev, cliente)
	})
}

type acumulacion struct {
	clienteID uuid.UUID
	puntos    int64
	ref       *uuid.UUID
}

func decodeAcumulacion(ev *model.EventoPendiente) (acumulacion, error) {
	var p dto.AcumulacionPuntos
	if err := json.Unmarshal([]byte(ev.Payload), &p); err != nil {
		return acumulacion{}, fmt.Errorf("payload acumulacion %s: %w", ev.Clave, err)
	}
	id, err := uuid.Parse(p.ClienteID)
	if err != nil {
		return acumulacion{}, fmt.Errorf("payload acumulacion %s: %w", ev.Clave, err)
	}
	a := acumulacion{clienteID: id, puntos: p.Puntos}
	if ref, err := uuid.Parse(p.ReferenciaID); err == nil {
		a.ref = &ref
	}
	return a, nil
}

// aplicarEventoTx credits an accrual once. The caller holds the row locks on
// cliente and ev.
func (l *lealtadService) aplicarEventoTx(tx *gorm.DB, ev *model.EventoPendiente, cliente *model.Cliente) error {
	if ev.Estado == model.EventoProcesado {
		return nil
	}
	p, err := decodeAcumulacion(ev)
	if err != nil {
		return err
	}
	if p.clienteID != cliente.ID {
		return fmt.Errorf("acumulacion %s pertenece a otro cliente", ev.Clave)
	}

	aplicada, err := l.st.Puntos.ExisteClaveTx(tx, ev.Clave)
	if err != nil {
		return err
	}
	if !aplicada {
		cliente.PuntosSaldo += p.puntos
		if err := l.st.Clientes.UpdateTx(tx, cliente); err != nil {
			return err
		}
		clave := ev.Clave
		if err := l.st.Puntos.CreateTx(tx, &model.MovimientoPuntos{
			ID:           uuid.New(),
			ClienteID:    cliente.ID,
			Tipo:         model.PuntosAcumulacion,
			Puntos:       p.puntos,
			Clave:        &clave,
			ReferenciaID: p.ref,
			CreatedAt:    l.clock(),
		}); err != nil {
			return err
		}
		log.Info().Str("cliente_id", cliente.ID.String()).Int64("puntos", p.puntos).Str("clave", ev.Clave).Msg("puntos acumulados")
	}
	ev.Estado = model.EventoProcesado
	return l.st.Eventos.MarcarProcesadoTx(tx, ev.ID, l.clock())
}

// revertirTx takes back the points the refunded amount had earned: what the
// sale's remaining paid amount earned before the return minus what it earns
// after it, bounded by the customer's current balance. venta.TotalDevuelto
// must not include reembolso yet. A pending accrual for the sale is applied
// first so the reversal never runs ahead of it. Redeemed points are not
// restored.
func (l *lealtadService) revertirTx(tx *gorm.DB, venta *model.Venta, cliente *model.Cliente, reembolso decimal.Decimal, devolucionID uuid.UUID) (int64, error) {
	if cliente == nil || venta.EstadoPago != model.EstadoPagoPagado {
		return 0, nil
	}
	ev, err := l.st.Eventos.FindByClaveTx(tx, claveAcumulacionVenta(venta.ID), repository.LockUpdate)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil // the sale never earned points
	}
	if err != nil {
		return 0, err
	}
	if err := l.aplicarEventoTx(tx, ev, cliente); err != nil {
		return 0, err
	}

	antes := venta.Total.Sub(venta.TotalDevuelto)
	puntos := l.PuntosPorMonto(antes) - l.PuntosPorMonto(antes.Sub(reembolso))
	if puntos > cliente.PuntosSaldo {
		puntos = cliente.PuntosSaldo
	}
	if puntos <= 0 {
		return 0, nil
	}
	cliente.PuntosSaldo -= puntos
	if err := l.st.Clientes.UpdateTx(tx, cliente); err != nil {
		return 0, err
	}
	ref := devolucionID
	if err := l.st.Puntos.CreateTx(tx, &model.MovimientoPuntos{
		ID:           uuid.New(),
		ClienteID:    cliente.ID,
		Tipo:         model.PuntosReverso,
		Puntos:       -puntos,
		ReferenciaID: &ref,
		CreatedAt:    l.clock(),
	}); err != nil {
		return 0, err
	}
	return puntos, nil
}
