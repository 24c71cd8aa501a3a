package infra

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartpos/internal/apierror"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveOperacion(t *testing.T) {
	m := NewMetrics()
	m.ObserveOperacion("registrar_venta", time.Now(), nil)
	m.ObserveOperacion("registrar_venta", time.Now(), apierror.OutOfStock("p", "x", 2, 1))
	m.ObserveOperacion("registrar_venta", time.Now(), errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operaciones.WithLabelValues("registrar_venta", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operaciones.WithLabelValues("registrar_venta", "OUT_OF_STOCK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operaciones.WithLabelValues("registrar_venta", "error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "smartpos_operaciones_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperacion("x", time.Now(), nil)
		m.ObserveEvento("alerta_stock", nil)
		m.SetEventosPendientes(3)
	})
}
