package worker

// outbox_relay.go
// Background goroutine that delivers outbox events (eventos_pendientes)
// written by committed transactions. Failed deliveries back off
// exponentially; after MaxIntentos the event is marked fallido and copied to
// the Redis DLQ. The alert channel sits behind a circuit breaker so a downed
// Redis does not burn retries.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/infra"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	outboxLease       = 2 * time.Minute
	outboxBackoffBase = 5 * time.Second
	outboxBackoffMax  = 30 * time.Minute
	outboxDLQPrefix   = "outbox:"
)

// Acumulador applies a scheduled loyalty accrual by its outbox key.
type Acumulador interface {
	AplicarAcumulacion(ctx context.Context, clave string) error
}

// AlertaEncolador hands a low-stock alert to the notification channel.
type AlertaEncolador interface {
	EnqueueAlertaStock(ctx context.Context, a dto.AlertaStock) error
}

// RelayConfig holds all dependencies for the relay goroutine.
type RelayConfig struct {
	Eventos     repository.EventoRepository
	Lealtad     Acumulador
	Alertas     AlertaEncolador
	CB          *infra.CircuitBreaker
	DLQ         RedisQueue
	Metrics     *infra.Metrics
	Interval    time.Duration
	MaxIntentos int
	BatchSize   int
}

type Relay struct {
	cfg RelayConfig
	now func() time.Time
}

func NewRelay(cfg RelayConfig) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxIntentos <= 0 {
		cfg.MaxIntentos = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.CB == nil {
		cfg.CB = infra.NewCircuitBreaker(infra.DefaultCBConfig("alertas"))
	}
	return &Relay{cfg: cfg, now: time.Now}
}

// ResultadoLote summarises one relay pass.
type ResultadoLote struct {
	Reclamados int `json:"reclamados"`
	Procesados int `json:"procesados"`
	Reintentos int `json:"reintentos"`
	Fallidos   int `json:"fallidos"`
	Omitidos   int `json:"omitidos"`
}

// Start ticks every Interval until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", r.cfg.Interval).Msg("outbox_relay: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("outbox_relay: shutting down")
				return
			case <-ticker.C:
				if _, err := r.ProcesarLote(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("outbox_relay: batch failed")
				}
			}
		}
	}()
}

// ProcesarLote claims one batch of due events and delivers them.
func (r *Relay) ProcesarLote(ctx context.Context) (ResultadoLote, error) {
	var res ResultadoLote
	eventos, err := r.cfg.Eventos.Claim(ctx, r.now(), r.cfg.BatchSize, outboxLease)
	if err != nil {
		return res, fmt.Errorf("outbox_relay: claim: %w", err)
	}
	res.Reclamados = len(eventos)

	for i := range eventos {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		ev := &eventos[i]

		// a tripped breaker leaves the event leased; it becomes due again later
		if ev.Tipo == model.EventoAlertaStock && r.cfg.CB.State() == infra.CBOpen {
			res.Omitidos++
			continue
		}

		err := r.entregar(ctx, ev)
		r.cfg.Metrics.ObserveEvento(string(ev.Tipo), err)
		if err == nil {
			res.Procesados++
			continue
		}
		if r.fallo(ctx, ev, err) {
			res.Fallidos++
		} else {
			res.Reintentos++
		}
	}

	if n, err := r.cfg.Eventos.CountPendientes(ctx); err == nil {
		r.cfg.Metrics.SetEventosPendientes(n)
	}
	if res.Reclamados > 0 {
		log.Info().
			Int("reclamados", res.Reclamados).
			Int("procesados", res.Procesados).
			Int("reintentos", res.Reintentos).
			Int("fallidos", res.Fallidos).
			Int("omitidos", res.Omitidos).
			Msg("outbox_relay: batch done")
	}
	return res, nil
}

func (r *Relay) entregar(ctx context.Context, ev *model.EventoPendiente) error {
	switch ev.Tipo {
	case model.EventoAcumularPuntos:
		// marks the event processed in its own transaction
		return r.cfg.Lealtad.AplicarAcumulacion(ctx, ev.Clave)

	case model.EventoAlertaStock:
		var a dto.AlertaStock
		if err := json.Unmarshal([]byte(ev.Payload), &a); err != nil {
			return permanente(fmt.Errorf("payload alerta %s: %w", ev.Clave, err))
		}
		if err := r.cfg.CB.Execute(func() error {
			return r.cfg.Alertas.EnqueueAlertaStock(ctx, a)
		}); err != nil {
			return err
		}
		return r.cfg.Eventos.MarcarProcesado(ctx, ev.ID, r.now())

	default:
		return permanente(fmt.Errorf("tipo de evento desconocido %q", ev.Tipo))
	}
}

// fallo records a failed delivery and reports whether it was the last one.
func (r *Relay) fallo(ctx context.Context, ev *model.EventoPendiente, cause error) bool {
	intentos := ev.Intentos + 1
	definitivo := intentos >= r.cfg.MaxIntentos || esPermanente(cause)
	next := r.now().Add(backoff(intentos))
	msg := cause.Error()

	if err := r.cfg.Eventos.MarcarFallo(ctx, ev.ID, intentos, next, msg, definitivo); err != nil {
		log.Error().Err(err).Str("clave", ev.Clave).Msg("outbox_relay: failed to record failure")
	}

	if definitivo {
		log.Error().
			Str("clave", ev.Clave).
			Str("tipo", string(ev.Tipo)).
			Int("intentos", intentos).
			Str("error", msg).
			Msg("outbox_relay: event failed permanently, moving to DLQ")
		SendToDLQ(ctx, r.cfg.DLQ, outboxDLQPrefix+string(ev.Tipo), string(ev.Tipo), json.RawMessage(ev.Payload),
			fmt.Sprintf("%s (clave %s)", msg, ev.Clave), intentos)
		return true
	}

	log.Warn().
		Str("clave", ev.Clave).
		Int("intentos", intentos).
		Time("next_retry_at", next).
		Str("error", msg).
		Msg("outbox_relay: delivery failed, scheduled next attempt")
	return false
}

// backoff doubles from outboxBackoffBase per attempt, capped at outboxBackoffMax.
func backoff(intentos int) time.Duration {
	if intentos < 1 {
		intentos = 1
	}
	d := outboxBackoffBase
	for i := 1; i < intentos; i++ {
		d *= 2
		if d >= outboxBackoffMax {
			return outboxBackoffMax
		}
	}
	return d
}
