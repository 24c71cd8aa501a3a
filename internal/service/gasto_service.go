package service

import (
	"context"
	"fmt"
	"strings"
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

type GastoService interface {
	Crear(ctx context.Context, usuarioID uuid.UUID, req dto.CrearGastoRequest) (*dto.GastoResponse, error)
	Pagar(ctx context.Context, usuarioID, gastoID uuid.UUID, req dto.PagarGastoRequest) (*dto.GastoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.GastoResponse, error)
}

type gastoService struct {
	st       *repository.Set
	registro *registroCaja
	metrics  *infra.Metrics
	clock    func() time.Time
}

func NewGastoService(st *repository.Set, metrics *infra.Metrics) GastoService {
	return &gastoService{st: st, registro: &registroCaja{caja: st.Caja}, metrics: metrics, clock: time.Now}
}

func (s *gastoService) Crear(ctx context.Context, usuarioID uuid.UUID, req dto.CrearGastoRequest) (*dto.GastoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, apierror.Validation("el monto debe ser mayor a cero", map[string]any{"monto": req.Monto.String()})
	}
	categoria := strings.TrimSpace(req.Categoria)
	if categoria == "" {
		categoria = "general"
	}
	ahora := s.clock()
	g := &model.Gasto{
		ID:          uuid.New(),
		Descripcion: strings.TrimSpace(req.Descripcion),
		Categoria:   categoria,
		Monto:       redondear(req.Monto),
		MontoPagado: cero,
		Estado:      model.GastoPendiente,
		UsuarioID:   usuarioID,
		CreatedAt:   ahora,
		UpdatedAt:   ahora,
	}
	if req.FechaVencimiento != nil {
		t, err := time.Parse("2006-01-02", *req.FechaVencimiento)
		if err != nil {
			return nil, apierror.Validation("fecha_vencimiento invalida", map[string]any{"fecha_vencimiento": *req.FechaVencimiento})
		}
		g.FechaVencimiento = &t
	}
	if err := s.st.Gastos.Create(ctx, g); err != nil {
		return nil, err
	}
	return gastoToResponse(g), nil
}

// Pagar pays a gasto partially or in full. With fuente=caja the money leaves
// the acting user's open register and must not exceed what that register
// holds for the payment method; fuente=externa records no cash movement.
func (s *gastoService) Pagar(ctx context.Context, usuarioID, gastoID uuid.UUID, req dto.PagarGastoRequest) (*dto.GastoResponse, error) {
	start := time.Now()
	metodo := model.MetodoPago(req.MetodoPago)
	fuente := model.FuenteFondos(req.Fuente)
	switch {
	case !metodo.Valido():
		return nil, apierror.Validation("metodo de pago invalido", map[string]any{"metodo_pago": req.MetodoPago})
	case fuente != model.FuenteCaja && fuente != model.FuenteExterna:
		return nil, apierror.Validation("fuente de fondos invalida", map[string]any{"fuente": req.Fuente})
	case !req.Monto.IsPositive():
		return nil, apierror.Validation("el monto debe ser mayor a cero", map[string]any{"monto": req.Monto.String()})
	}
	monto := redondear(req.Monto)

	var g *model.Gasto
	err := s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		ahora := s.clock()
		var err error
		if g, err = s.st.Gastos.FindByIDForUpdateTx(tx, gastoID); err != nil {
			return notFound(err, "gasto", gastoID.String())
		}
		if g.Estado == model.GastoPagado {
			return apierror.AlreadyPaid("gasto", gastoID.String())
		}
		if monto.GreaterThan(g.Pendiente().Add(epsilon)) {
			return apierror.Validation("el monto supera el saldo pendiente del gasto", map[string]any{
				"monto":     monto.StringFixed(2),
				"pendiente": g.Pendiente().StringFixed(2),
			})
		}

		pago := &model.PagoGasto{
			ID:         uuid.New(),
			GastoID:    g.ID,
			Monto:      monto,
			MetodoPago: metodo,
			Fuente:     fuente,
			UsuarioID:  usuarioID,
			CreatedAt:  ahora,
		}
		if fuente == model.FuenteCaja {
			sesion, err := s.registro.sesionAbiertaTx(tx, usuarioID, repository.LockUpdate)
			if err != nil {
				return err
			}
			if err := verificarSaldoTx(s.st.Caja, tx, sesion, metodo, monto); err != nil {
				return err
			}
			ref := g.ID
			mov := &model.MovimientoCaja{
				Tipo:         model.CajaPagoGasto,
				MetodoPago:   metodo,
				Monto:        monto,
				Descripcion:  fmt.Sprintf("pago gasto: %s", g.Descripcion),
				ReferenciaID: &ref,
				UsuarioID:    usuarioID,
			}
			if err := s.registro.registrarTx(tx, sesion, mov, ahora); err != nil {
				return err
			}
			pago.SesionCajaID = &sesion.ID
			pago.MovimientoCajaID = &mov.ID
		}
		if err := s.st.Gastos.CreatePagoTx(tx, pago); err != nil {
			return err
		}

		g.MontoPagado = g.MontoPagado.Add(monto)
		g.Estado = model.GastoParcial
		if esCero(g.Pendiente()) {
			g.MontoPagado = g.Monto
			g.Estado = model.GastoPagado
		}
		g.UpdatedAt = ahora
		g.Pagos = append(g.Pagos, *pago)
		return s.st.Gastos.UpdateTx(tx, g)
	})
	s.metrics.ObserveOperacion("pago_gasto", start, err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("gasto_id", g.ID.String()).Str("monto", monto.StringFixed(2)).
		Str("fuente", string(fuente)).Str("estado", string(g.Estado)).Msg("pago de gasto registrado")
	return gastoToResponse(g), nil
}

func (s *gastoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.GastoResponse, error) {
	g, err := s.st.Gastos.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "gasto", id.String())
	}
	return gastoToResponse(g), nil
}

func gastoToResponse(g *model.Gasto) *dto.GastoResponse {
	resp := &dto.GastoResponse{
		ID:          g.ID.String(),
		Descripcion: g.Descripcion,
		Categoria:   g.Categoria,
		Monto:       g.Monto,
		MontoPagado: g.MontoPagado,
		Estado:      string(g.Estado),
		Pagos:       make([]dto.PagoGastoResponse, 0, len(g.Pagos)),
		CreatedAt:   fechaISO(g.CreatedAt),
	}
	if g.FechaVencimiento != nil {
		f := g.FechaVencimiento.Format("2006-01-02")
		resp.FechaVencimiento = &f
	}
	for _, p := range g.Pagos {
		resp.Pagos = append(resp.Pagos, dto.PagoGastoResponse{
			ID:               p.ID.String(),
			Monto:            p.Monto,
			MetodoPago:       string(p.MetodoPago),
			Fuente:           string(p.Fuente),
			MovimientoCajaID: ptrString(p.MovimientoCajaID),
			CreatedAt:        fechaISO(p.CreatedAt),
		})
	}
	return resp
}
