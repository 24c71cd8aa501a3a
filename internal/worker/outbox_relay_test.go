package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"smartpos/internal/config"
	"smartpos/internal/dto"
	"smartpos/internal/infra"
	"smartpos/internal/model"
	"smartpos/internal/repository/memstore"
	"smartpos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncolador struct {
	mu      sync.Mutex
	err     error
	alertas []dto.AlertaStock
}

func (e *fakeEncolador) EnqueueAlertaStock(_ context.Context, a dto.AlertaStock) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.alertas = append(e.alertas, a)
	return nil
}

type relayFixture struct {
	store   *memstore.Store
	rdb     *fakeRedis
	alertas *fakeEncolador
	relay   *Relay
	now     time.Time
}

func newRelayFixture(t *testing.T, cb *infra.CircuitBreaker) *relayFixture {
	t.Helper()
	store := memstore.New()
	f := &relayFixture{
		store:   store,
		rdb:     newFakeRedis(),
		alertas: &fakeEncolador{},
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	st := store.Set()
	f.relay = NewRelay(RelayConfig{
		Eventos:     st.Eventos,
		Lealtad:     service.NewLealtadService(st, config.LealtadDefault()),
		Alertas:     f.alertas,
		CB:          cb,
		DLQ:         f.rdb,
		Metrics:     infra.NewMetrics(),
		MaxIntentos: 3,
		BatchSize:   10,
	})
	f.relay.now = func() time.Time { return f.now }
	store.SetClock(func() time.Time { return f.now })
	return f
}

func (f *relayFixture) alerta(t *testing.T, clave string) model.EventoPendiente {
	t.Helper()
	payload, err := json.Marshal(alertaMate)
	require.NoError(t, err)
	return f.store.SeedEvento(model.EventoPendiente{
		Tipo:        model.EventoAlertaStock,
		Clave:       clave,
		Payload:     string(payload),
		NextRetryAt: f.now,
		CreatedAt:   f.now,
	})
}

func (f *relayFixture) evento(clave string) model.EventoPendiente {
	for _, tipo := range []model.TipoEvento{model.EventoAlertaStock, model.EventoAcumularPuntos} {
		for _, e := range f.store.Eventos(tipo) {
			if e.Clave == clave {
				return e
			}
		}
	}
	return model.EventoPendiente{}
}

func TestRelay_EntregaAlertasYAcumulaciones(t *testing.T) {
	f := newRelayFixture(t, nil)
	c := f.store.SeedCliente(model.Cliente{Nombre: "Ana", LimiteCredito: decimal.Zero, SaldoDeuda: decimal.Zero, PuntosSaldo: 3, Activo: true})
	ventaID := uuid.New()
	payload, err := json.Marshal(dto.AcumulacionPuntos{ClienteID: c.ID.String(), Puntos: 12, ReferenciaID: ventaID.String()})
	require.NoError(t, err)
	acum := f.store.SeedEvento(model.EventoPendiente{
		Tipo:        model.EventoAcumularPuntos,
		Clave:       "acumular_puntos:venta:" + ventaID.String(),
		Payload:     string(payload),
		NextRetryAt: f.now,
		CreatedAt:   f.now,
	})
	alerta := f.alerta(t, "alerta_stock:"+ventaID.String()+":p-1")

	res, err := f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultadoLote{Reclamados: 2, Procesados: 2}, res)

	assert.Equal(t, int64(15), f.store.Cliente(c.ID).PuntosSaldo)
	require.Len(t, f.alertas.alertas, 1)
	assert.Equal(t, alertaMate, f.alertas.alertas[0])
	assert.Equal(t, model.EventoProcesado, f.evento(acum.Clave).Estado)
	assert.Equal(t, model.EventoProcesado, f.evento(alerta.Clave).Estado)

	res, err = f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Reclamados)
	assert.Equal(t, int64(15), f.store.Cliente(c.ID).PuntosSaldo)
}

func TestRelay_ReintentaConBackoffYTerminaEnLaDLQ(t *testing.T) {
	f := newRelayFixture(t, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "test", FailureThreshold: 100}))
	f.alertas.err = errors.New("redis: connection refused")
	ev := f.alerta(t, "alerta_stock:v:p")

	res, err := f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reintentos)
	got := f.evento(ev.Clave)
	assert.Equal(t, model.EventoPendienteEstado, got.Estado)
	assert.Equal(t, 1, got.Intentos)
	assert.Equal(t, f.now.Add(5*time.Second), got.NextRetryAt)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "connection refused")

	// not due yet
	res, err = f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Reclamados)

	f.now = f.now.Add(time.Minute)
	_, err = f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.evento(ev.Clave).Intentos)
	assert.Empty(t, f.rdb.dlq(outboxDLQPrefix+string(model.EventoAlertaStock)))

	f.now = f.now.Add(time.Minute)
	res, err = f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fallidos)
	got = f.evento(ev.Clave)
	assert.Equal(t, model.EventoFallido, got.Estado)
	assert.Equal(t, 3, got.Intentos)

	dlq := f.rdb.dlq(outboxDLQPrefix + string(model.EventoAlertaStock))
	require.Len(t, dlq, 1)
	assert.Equal(t, 3, dlq[0].Attempts)
	assert.Contains(t, dlq[0].Reason, ev.Clave)

	// a failed event is never claimed again
	f.now = f.now.Add(time.Hour)
	res, err = f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Reclamados)
}

func TestRelay_CircuitoAbiertoNoConsumeIntentos(t *testing.T) {
	f := newRelayFixture(t, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "test", FailureThreshold: 1}))
	f.alertas.err = errors.New("redis: connection refused")
	a := f.alerta(t, "alerta_stock:v:a")
	b := f.alerta(t, "alerta_stock:v:b")

	res, err := f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultadoLote{Reclamados: 2, Reintentos: 1, Omitidos: 1}, res)
	assert.Equal(t, 1, f.evento(a.Clave).Intentos)
	skipped := f.evento(b.Clave)
	assert.Equal(t, 0, skipped.Intentos)
	assert.Equal(t, model.EventoPendienteEstado, skipped.Estado)
}

func TestRelay_PayloadInvalidoEsDefinitivo(t *testing.T) {
	f := newRelayFixture(t, nil)
	ev := f.store.SeedEvento(model.EventoPendiente{
		Tipo:        model.EventoAlertaStock,
		Clave:       "alerta_stock:roto",
		Payload:     `"sin objeto"`,
		NextRetryAt: f.now,
	})

	res, err := f.relay.ProcesarLote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fallidos)
	assert.Equal(t, model.EventoFallido, f.evento(ev.Clave).Estado)
	assert.Len(t, f.rdb.dlq(outboxDLQPrefix+string(model.EventoAlertaStock)), 1)
	assert.Empty(t, f.alertas.alertas)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoff(1))
	assert.Equal(t, 10*time.Second, backoff(2))
	assert.Equal(t, 20*time.Second, backoff(3))
	assert.Equal(t, outboxBackoffMax, backoff(20))
}
