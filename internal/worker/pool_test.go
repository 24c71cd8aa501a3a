package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"smartpos/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu      sync.Mutex
	fallas  int
	alertas []dto.AlertaStock
}

func (n *fakeNotifier) EnviarAlertaStock(a dto.AlertaStock) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fallas > 0 {
		n.fallas--
		return errors.New("smtp: connection refused")
	}
	n.alertas = append(n.alertas, a)
	return nil
}

func (n *fakeNotifier) enviadas() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alertas)
}

var alertaMate = dto.AlertaStock{
	ProductoID:  "p-1",
	Nombre:      "Yerba Mate 1kg",
	StockActual: 2,
	StockMinimo: 5,
	VentaID:     "v-1",
	Fecha:       "2026-03-10",
}

func TestDispatcher_EncolaAlerta(t *testing.T) {
	rdb := newFakeRedis()
	d := NewDispatcher(rdb)

	require.NoError(t, d.EnqueueAlertaStock(context.Background(), alertaMate))

	raw := rdb.list(QueueAlertasStock)
	require.Len(t, raw, 1)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &job))
	assert.Equal(t, jobAlertaStock, job.Type)
	var got dto.AlertaStock
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, alertaMate, got)
}

func TestPool_ProcessJob_EnviaAlerta(t *testing.T) {
	rdb := newFakeRedis()
	n := &fakeNotifier{fallas: 1}
	p := NewPool(rdb, NewAlertaWorker(n), 1)
	p.retryBase = time.Millisecond

	require.NoError(t, NewDispatcher(rdb).EnqueueAlertaStock(context.Background(), alertaMate))
	p.processJob(context.Background(), QueueAlertasStock, rdb.list(QueueAlertasStock)[0])

	require.Equal(t, 1, n.enviadas())
	assert.Equal(t, "Yerba Mate 1kg", n.alertas[0].Nombre)
	assert.Empty(t, rdb.dlq(QueueAlertasStock))
}

func TestPool_ProcessJob_AgotaReintentosYVaALaDLQ(t *testing.T) {
	rdb := newFakeRedis()
	n := &fakeNotifier{fallas: 10}
	p := NewPool(rdb, NewAlertaWorker(n), 1)
	p.retryBase = time.Millisecond

	require.NoError(t, NewDispatcher(rdb).EnqueueAlertaStock(context.Background(), alertaMate))
	p.processJob(context.Background(), QueueAlertasStock, rdb.list(QueueAlertasStock)[0])

	dlq := rdb.dlq(QueueAlertasStock)
	require.Len(t, dlq, 1)
	assert.Equal(t, jobMaxAttempts, dlq[0].Attempts)
	assert.Equal(t, jobAlertaStock, dlq[0].JobType)
	assert.Contains(t, dlq[0].Reason, "connection refused")
	assert.Equal(t, 7, n.fallas)
}

func TestPool_ProcessJob_PayloadInvalidoNoSeReintenta(t *testing.T) {
	rdb := newFakeRedis()
	n := &fakeNotifier{}
	p := NewPool(rdb, NewAlertaWorker(n), 1)

	p.processJob(context.Background(), QueueAlertasStock, `{"type":"alerta_stock","payload":"no es un objeto"}`)
	p.processJob(context.Background(), QueueAlertasStock, `not json`)
	p.processJob(context.Background(), QueueAlertasStock, `{"type":"facturacion","payload":{}}`)

	assert.Len(t, rdb.dlq(QueueAlertasStock), 3)
	assert.Zero(t, n.enviadas())
}

func TestPool_SinNotificadorSoloRegistra(t *testing.T) {
	w := NewAlertaWorker(nil)
	raw, err := json.Marshal(alertaMate)
	require.NoError(t, err)
	assert.NoError(t, w.Process(context.Background(), raw))
}

func TestPool_StartConsumeLaCola(t *testing.T) {
	rdb := newFakeRedis()
	n := &fakeNotifier{}
	p := NewPool(rdb, NewAlertaWorker(n), 2)
	p.pollTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	d := NewDispatcher(rdb)
	for i := 0; i < 3; i++ {
		require.NoError(t, d.EnqueueAlertaStock(ctx, alertaMate))
	}

	assert.Eventually(t, func() bool { return n.enviadas() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, rdb.list(QueueAlertasStock))
}

func TestWithRetry_CortaConContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 3, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
