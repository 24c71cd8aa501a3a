package infra

import (
	"net/http"
	"time"

	"smartpos/internal/apierror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	operaciones       *prometheus.CounterVec
	duracion          *prometheus.HistogramVec
	eventos           *prometheus.CounterVec
	eventosPendientes prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operaciones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpos_operaciones_total",
			Help: "Business operations by outcome (ok or error code).",
		}, []string{"operacion", "resultado"}),
		duracion: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartpos_operacion_duracion_seconds",
			Help:    "Wall time of business operations, transaction included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operacion"}),
		eventos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpos_outbox_eventos_total",
			Help: "Outbox events handled by the relay.",
		}, []string{"tipo", "resultado"}),
		eventosPendientes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartpos_outbox_pendientes",
			Help: "Outbox events waiting for delivery.",
		}),
	}
	reg.MustRegister(
		m.operaciones, m.duracion, m.eventos, m.eventosPendientes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperacion records outcome and latency of one business operation.
func (m *Metrics) ObserveOperacion(operacion string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.duracion.WithLabelValues(operacion).Observe(time.Since(start).Seconds())
	m.operaciones.WithLabelValues(operacion, resultado(err)).Inc()
}

func (m *Metrics) ObserveEvento(tipo string, err error) {
	if m == nil {
		return
	}
	m.eventos.WithLabelValues(tipo, resultado(err)).Inc()
}

func (m *Metrics) SetEventosPendientes(n int64) {
	if m == nil {
		return
	}
	m.eventosPendientes.Set(float64(n))
}

func resultado(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := apierror.As(err); ok {
		return string(e.Code)
	}
	return "error"
}
