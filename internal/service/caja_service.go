package service

import (
	"context"
	"errors"
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

// ── Register ──────────────────────────────────────────────────────────────────
// registroCaja appends movements to the acting user's open register inside the
// caller's transaction. Every writer gets RegisterNotOpen when the user has
// no open register; there is no fallback to another user's register.

type registroCaja struct {
	caja repository.CajaRepository
}

func (r *registroCaja) sesionAbiertaTx(tx *gorm.DB, usuarioID uuid.UUID, lock repository.Lock) (*model.SesionCaja, error) {
	s, err := r.caja.FindSesionAbiertaTx(tx, usuarioID, lock)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.RegisterNotOpen(usuarioID.String())
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *registroCaja) registrarTx(tx *gorm.DB, sesion *model.SesionCaja, m *model.MovimientoCaja, ahora time.Time) error {
	if !sesion.Abierta() {
		return apierror.RegisterNotOpen(sesion.UsuarioID.String())
	}
	if Clasificar(m.Tipo) == BucketDesconocido {
		return apierror.Validation("tipo de movimiento de caja desconocido", map[string]any{"tipo": string(m.Tipo)})
	}
	if !m.MetodoPago.Valido() {
		return apierror.Validation("metodo de pago invalido", map[string]any{"metodo_pago": string(m.MetodoPago)})
	}
	if !m.Monto.IsPositive() {
		return apierror.Validation("el monto del movimiento debe ser positivo", map[string]any{"monto": m.Monto.String()})
	}
	m.ID = uuid.New()
	m.SesionCajaID = sesion.ID
	m.Monto = redondear(m.Monto)
	m.CreatedAt = ahora
	if err := r.caja.CreateMovimientoTx(tx, m); err != nil {
		return fmt.Errorf("registrar movimiento de caja: %w", err)
	}
	return nil
}

// ── CajaService ───────────────────────────────────────────────────────────────

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.ReporteCajaResponse, error)
	Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error)
	RegistrarMovimientoManual(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) (*dto.MovimientoCajaResponse, error)
	GetActiva(ctx context.Context, usuarioID uuid.UUID) (*dto.ReporteCajaResponse, error)
	ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error)
	Historial(ctx context.Context, page, limit int) (*dto.HistorialCajaResponse, error)
}

type cajaService struct {
	st       *repository.Set
	registro *registroCaja
	metrics  *infra.Metrics
	clock    func() time.Time
}

func NewCajaService(st *repository.Set, metrics *infra.Metrics) CajaService {
	return &cajaService{
		st:       st,
		registro: &registroCaja{caja: st.Caja},
		metrics:  metrics,
		clock:    time.Now,
	}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// The lookup is only a fast path; two concurrent opens are settled by the
// partial unique index on (usuario_id) where estado = 'abierta'.

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.ReporteCajaResponse, error) {
	if req.MontoInicial.IsNegative() {
		return nil, apierror.Validation("monto_inicial no puede ser negativo", map[string]any{"monto_inicial": req.MontoInicial.String()})
	}
	if _, err := s.st.Caja.FindSesionAbierta(ctx, usuarioID); err == nil {
		return nil, apierror.AlreadyOpen(usuarioID.String())
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pdv := req.PuntoDeVenta
	if pdv == 0 {
		pdv = 1
	}
	sesion := &model.SesionCaja{
		ID:           uuid.New(),
		UsuarioID:    usuarioID,
		PuntoDeVenta: pdv,
		MontoInicial: redondear(req.MontoInicial),
		Estado:       model.SesionAbierta,
		OpenedAt:     s.clock(),
	}
	if err := s.st.Caja.CreateSesion(ctx, sesion); err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, apierror.AlreadyOpen(usuarioID.String())
		}
		return nil, err
	}
	log.Info().Str("usuario_id", usuarioID.String()).Str("sesion_id", sesion.ID.String()).
		Str("monto_inicial", sesion.MontoInicial.StringFixed(2)).Msg("caja abierta")
	return buildReporte(sesion, nil), nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Blind count: the expected amount is computed only after the counted amount
// is received. Expected = opening float + classified efectivo movements.

func (s *cajaService) Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.ReporteCajaResponse, error) {
	start := time.Now()
	if req.MontoContado.IsNegative() {
		return nil, apierror.Validation("monto_contado no puede ser negativo", map[string]any{"monto_contado": req.MontoContado.String()})
	}

	var (
		sesion *model.SesionCaja
		movs   []model.MovimientoCaja
	)
	err := s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		sesion, err = s.registro.sesionAbiertaTx(tx, usuarioID, repository.LockUpdate)
		if err != nil {
			return err
		}
		movs, err = s.st.Caja.ListMovimientosTx(tx, sesion.ID)
		if err != nil {
			return err
		}

		efectivo := model.MetodoEfectivo
		esperado := redondear(Balance(sesion.MontoInicial, movs, &efectivo).Neto())
		contado := redondear(req.MontoContado)
		desvio := contado.Sub(esperado)
		pct := cero
		if !esperado.IsZero() {
			pct = redondear(desvio.Div(esperado.Abs()).Mul(cien))
		}
		clasificacion := clasificarDesvio(pct)
		ahora := s.clock()

		sesion.MontoEsperado = &esperado
		sesion.MontoContado = &contado
		sesion.Desvio = &desvio
		sesion.DesvioPct = &pct
		sesion.ClasificacionDesvio = &clasificacion
		sesion.Observaciones = req.Observaciones
		sesion.Estado = model.SesionCerrada
		sesion.ClosedAt = &ahora
		return s.st.Caja.UpdateSesionTx(tx, sesion)
	})
	s.metrics.ObserveOperacion("cerrar_caja", start, err)
	if err != nil {
		return nil, err
	}

	rep := buildReporte(sesion, movs)
	rep.Declaracion = req.Declaracion
	ev := log.Info()
	if *sesion.ClasificacionDesvio == "critico" {
		ev = log.Warn()
	}
	ev.Str("sesion_id", sesion.ID.String()).
		Str("esperado", sesion.MontoEsperado.StringFixed(2)).
		Str("contado", sesion.MontoContado.StringFixed(2)).
		Str("clasificacion", *sesion.ClasificacionDesvio).
		Msg("caja cerrada")
	return rep, nil
}

// ── RegistrarMovimientoManual ─────────────────────────────────────────────────
// The only way non-sale income or expense enters the register.

func (s *cajaService) RegistrarMovimientoManual(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) (*dto.MovimientoCajaResponse, error) {
	start := time.Now()
	tipo := model.TipoMovimientoCaja(req.Tipo)
	switch tipo {
	case model.CajaIngresoManual, model.CajaEgresoManual, model.CajaRetiro:
	default:
		return nil, apierror.Validation("tipo de movimiento manual no permitido", map[string]any{"tipo": req.Tipo})
	}
	metodo := model.MetodoPago(req.MetodoPago)
	if !metodo.Valido() {
		return nil, apierror.Validation("metodo de pago invalido", map[string]any{"metodo_pago": req.MetodoPago})
	}

	var mov model.MovimientoCaja
	err := s.st.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		lock := repository.LockShare
		if Clasificar(tipo) == BucketEgreso {
			lock = repository.LockUpdate
		}
		sesion, err := s.registro.sesionAbiertaTx(tx, usuarioID, lock)
		if err != nil {
			return err
		}
		if Clasificar(tipo) == BucketEgreso {
			if err := verificarSaldoTx(s.st.Caja, tx, sesion, metodo, req.Monto); err != nil {
				return err
			}
		}
		mov = model.MovimientoCaja{
			Tipo:        tipo,
			MetodoPago:  metodo,
			Monto:       req.Monto,
			Descripcion: req.Descripcion,
			UsuarioID:   usuarioID,
		}
		return s.registro.registrarTx(tx, sesion, &mov, s.clock())
	})
	s.metrics.ObserveOperacion("movimiento_manual", start, err)
	if err != nil {
		return nil, err
	}
	resp := movimientoToResponse(mov)
	return &resp, nil
}

// verificarSaldoTx fails with InsufficientCashBalance when monto exceeds what
// the register holds for metodo. Callers hold the session FOR UPDATE.
func verificarSaldoTx(caja repository.CajaRepository, tx *gorm.DB, sesion *model.SesionCaja, metodo model.MetodoPago, monto decimal.Decimal) error {
	movs, err := caja.ListMovimientosTx(tx, sesion.ID)
	if err != nil {
		return err
	}
	disponible := Balance(sesion.MontoInicial, movs, &metodo).Neto()
	if monto.GreaterThan(disponible.Add(epsilon)) {
		return apierror.InsufficientCashBalance(string(metodo), monto.StringFixed(2), disponible.StringFixed(2))
	}
	return nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *cajaService) GetActiva(ctx context.Context, usuarioID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.st.Caja.FindSesionAbierta(ctx, usuarioID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.RegisterNotOpen(usuarioID.String())
	}
	if err != nil {
		return nil, err
	}
	movs, err := s.st.Caja.ListMovimientos(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}
	return buildReporte(sesion, movs), nil
}

func (s *cajaService) ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, err := s.st.Caja.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, notFound(err, "sesion_caja", sesionID.String())
	}
	movs, err := s.st.Caja.ListMovimientos(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}
	return buildReporte(sesion, movs), nil
}

func (s *cajaService) Historial(ctx context.Context, page, limit int) (*dto.HistorialCajaResponse, error) {
	sesiones, total, err := s.st.Caja.ListSesiones(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	out := &dto.HistorialCajaResponse{Data: make([]dto.ReporteCajaResponse, 0, len(sesiones)), Total: total, Page: page, Limit: limit}
	for i := range sesiones {
		rep := buildReporte(&sesiones[i], nil)
		rep.PorMetodo = nil
		out.Data = append(out.Data, *rep)
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return "advertencia"
	default:
		return "critico"
	}
}

// buildReporte folds movs per method. With movs nil only the stored closing
// figures are reported.
func buildReporte(sesion *model.SesionCaja, movs []model.MovimientoCaja) *dto.ReporteCajaResponse {
	rep := &dto.ReporteCajaResponse{
		SesionCajaID:  sesion.ID.String(),
		UsuarioID:     sesion.UsuarioID.String(),
		PuntoDeVenta:  sesion.PuntoDeVenta,
		MontoInicial:  sesion.MontoInicial,
		PorMetodo:     make(map[string]dto.SaldoMetodo, len(model.MetodosPago)),
		MontoContado:  sesion.MontoContado,
		Estado:        string(sesion.Estado),
		Observaciones: sesion.Observaciones,
		OpenedAt:      fechaISO(sesion.OpenedAt),
		ClosedAt:      ptrFecha(sesion.ClosedAt),
	}
	for metodo, saldo := range BalancePorMetodo(sesion.MontoInicial, movs) {
		rep.PorMetodo[string(metodo)] = saldoToDTO(saldo)
	}
	rep.MontoEsperado = rep.PorMetodo[string(model.MetodoEfectivo)].Neto
	if sesion.MontoEsperado != nil {
		rep.MontoEsperado = *sesion.MontoEsperado
	}
	if sesion.Desvio != nil && sesion.DesvioPct != nil && sesion.ClasificacionDesvio != nil {
		rep.Desvio = &dto.DesvioResponse{
			Monto:         *sesion.Desvio,
			Porcentaje:    *sesion.DesvioPct,
			Clasificacion: *sesion.ClasificacionDesvio,
		}
	}
	for _, m := range movs {
		rep.Movimientos = append(rep.Movimientos, movimientoToResponse(m))
	}
	return rep
}

func movimientoToResponse(m model.MovimientoCaja) dto.MovimientoCajaResponse {
	return dto.MovimientoCajaResponse{
		ID:           m.ID.String(),
		Tipo:         string(m.Tipo),
		MetodoPago:   string(m.MetodoPago),
		Monto:        m.Monto,
		Descripcion:  m.Descripcion,
		ReferenciaID: ptrString(m.ReferenciaID),
		CreatedAt:    fechaISO(m.CreatedAt),
	}
}
