package service

import (
	"context"
	"time"

	"smartpos/internal/apierror"
	"smartpos/internal/dto"
	"smartpos/internal/infra"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type DeudaService interface {
	RegistrarPago(ctx context.Context, usuarioID, deudaID uuid.UUID, req dto.RegistrarPagoDeudaRequest) (*dto.RegistrarPagoDeudaResponse, error)
	ListarPorCliente(ctx context.Context, clienteID uuid.UUID) (*dto.DeudasClienteResponse, error)
	// MarcarVencidas moves pendiente debts past their due date to vencida.
	MarcarVencidas(ctx context.Context, ahora time.Time) (int64, error)
}

type deudaService struct {
	st       *repository.Set
	credito  *credito
	lealtad  *lealtadService
	registro *registroCaja
	metrics  *infra.Metrics
	clock    func() time.Time
}

func NewDeudaService(st *repository.Set, reglas Reglas, metrics *infra.Metrics) DeudaService {
	return &deudaService{
		st:       st,
		credito:  &credito{clientes: st.Clientes, deudas: st.Deudas, diasGraciaDefault: reglas.DiasGraciaDefault},
		lealtad:  newLealtad(st, reglas.Lealtad),
		registro: &registroCaja{caja: st.Caja},
		metrics:  metrics,
		clock:    time.Now,
	}
}

// RegistrarPago applies an installment to a debt and records the money on the
// acting user's register. Settling the debt schedules the loyalty accrual for
// everything paid on the sale: the amount paid up front plus every installment.
func (s *deudaService) RegistrarPago(ctx context.Context, usuarioID, deudaID uuid.UUID, req dto.RegistrarPagoDeudaRequest) (*dto.RegistrarPagoDeudaResponse, error) {
	start := time.Now()
	metodo := model.MetodoPago(req.MetodoPago)
	if !metodo.Valido() {
		return nil, apierror.Validation("metodo de pago invalido", map[string]any{"metodo_pago": req.MetodoPago})
	}
	if !req.Monto.IsPositive() {
		return nil, apierror.Validation("el monto debe ser mayor a cero", map[string]any{"monto": req.Monto.String()})
	}
	monto := redondear(req.Monto)

	var (
		deuda      *model.Deuda
		pago       *model.PagoDeuda
		claveAcum  string
		puntosAcum int64
	)
	err := s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		ahora := s.clock()

		// lock order is cliente then deuda; the unlocked read only finds the customer
		previa, err := s.st.Deudas.FindByIDTx(tx, deudaID)
		if err != nil {
			return notFound(err, "deuda", deudaID.String())
		}
		cliente, err := s.st.Clientes.FindByIDForUpdateTx(tx, previa.ClienteID)
		if err != nil {
			return notFound(err, "cliente", previa.ClienteID.String())
		}
		if deuda, err = s.st.Deudas.FindByIDForUpdateTx(tx, deudaID); err != nil {
			return notFound(err, "deuda", deudaID.String())
		}
		if !deuda.Abierta() {
			return apierror.AlreadyPaid("deuda", deudaID.String())
		}

		saldada, err := s.credito.reducirTx(tx, deuda, cliente, monto, ahora)
		if err != nil {
			return err
		}

		sesion, err := s.registro.sesionAbiertaTx(tx, usuarioID, repository.LockShare)
		if err != nil {
			return err
		}
		ref := deuda.ID
		mov := &model.MovimientoCaja{
			Tipo:         model.CajaPagoDeuda,
			MetodoPago:   metodo,
			Monto:        monto,
			Descripcion:  "pago de deuda",
			ReferenciaID: &ref,
			UsuarioID:    usuarioID,
		}
		if err := s.registro.registrarTx(tx, sesion, mov, ahora); err != nil {
			return err
		}

		pago = &model.PagoDeuda{
			ID:               uuid.New(),
			DeudaID:          deuda.ID,
			Monto:            monto,
			MetodoPago:       metodo,
			MovimientoCajaID: &mov.ID,
			UsuarioID:        usuarioID,
			Nota:             req.Nota,
			CreatedAt:        ahora,
		}
		if err := s.st.Deudas.CreatePagoTx(tx, pago); err != nil {
			return err
		}
		if deuda.Pagos, err = s.st.Deudas.ListPagosTx(tx, deuda.ID); err != nil {
			return err
		}

		if saldada {
			// monto_pagado never changes after the sale, so the header is read unlocked
			venta, err := s.st.Ventas.FindByIDTx(tx, deuda.VentaID)
			if err != nil {
				return notFound(err, "venta", deuda.VentaID.String())
			}
			pagado := venta.MontoPagado
			for _, p := range deuda.Pagos {
				pagado = pagado.Add(p.Monto)
			}
			claveAcum = claveAcumulacionDeuda(deuda.ID)
			if puntosAcum, err = s.lealtad.programarAcumulacionTx(tx, claveAcum, cliente.ID, pagado, deuda.ID); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.ObserveOperacion("pago_deuda", start, err)
	if err != nil {
		return nil, err
	}

	if puntosAcum > 0 {
		if err := s.lealtad.AplicarAcumulacion(ctx, claveAcum); err != nil {
			log.Warn().Err(err).Str("clave", claveAcum).Msg("acumulacion de puntos diferida al relay")
		}
	}
	log.Info().Str("deuda_id", deuda.ID.String()).Str("monto", monto.StringFixed(2)).
		Str("saldo", deuda.SaldoPendiente.StringFixed(2)).Msg("pago de deuda registrado")

	return &dto.RegistrarPagoDeudaResponse{
		Pago:  pagoDeudaToResponse(*pago),
		Deuda: deudaToResponse(deuda),
	}, nil
}

func (s *deudaService) ListarPorCliente(ctx context.Context, clienteID uuid.UUID) (*dto.DeudasClienteResponse, error) {
	cliente, err := s.st.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, notFound(err, "cliente", clienteID.String())
	}
	deudas, err := s.st.Deudas.ListByCliente(ctx, clienteID)
	if err != nil {
		return nil, err
	}
	out := &dto.DeudasClienteResponse{
		ClienteID:     cliente.ID.String(),
		LimiteCredito: cliente.LimiteCredito,
		SaldoDeuda:    cliente.SaldoDeuda,
		PuntosSaldo:   cliente.PuntosSaldo,
		Deudas:        make([]dto.DeudaResponse, 0, len(deudas)),
	}
	for i := range deudas {
		out.Deudas = append(out.Deudas, deudaToResponse(&deudas[i]))
	}
	return out, nil
}

func (s *deudaService) MarcarVencidas(ctx context.Context, ahora time.Time) (int64, error) {
	n, err := s.st.Deudas.MarcarVencidas(ctx, ahora)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("deudas", n).Msg("deudas marcadas como vencidas")
	}
	return n, nil
}

func deudaToResponse(d *model.Deuda) dto.DeudaResponse {
	resp := dto.DeudaResponse{
		ID:               d.ID.String(),
		ClienteID:        d.ClienteID.String(),
		VentaID:          d.VentaID.String(),
		Monto:            d.Monto,
		SaldoPendiente:   d.SaldoPendiente,
		FechaVencimiento: fechaISO(d.FechaVencimiento),
		Estado:           string(d.Estado),
		Pagos:            make([]dto.PagoDeudaResponse, 0, len(d.Pagos)),
	}
	for _, p := range d.Pagos {
		resp.Pagos = append(resp.Pagos, pagoDeudaToResponse(p))
	}
	return resp
}

func pagoDeudaToResponse(p model.PagoDeuda) dto.PagoDeudaResponse {
	return dto.PagoDeudaResponse{
		ID:               p.ID.String(),
		Monto:            p.Monto,
		MetodoPago:       string(p.MetodoPago),
		MovimientoCajaID: ptrString(p.MovimientoCajaID),
		CreatedAt:        fechaISO(p.CreatedAt),
	}
}
