package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"smartpos/internal/dto"

	"github.com/rs/zerolog/log"
)

// AlertaNotifier delivers a low-stock alert to a human. *infra.Mailer
// satisfies it.
type AlertaNotifier interface {
	EnviarAlertaStock(a dto.AlertaStock) error
}

// AlertaWorker processes jobs from QueueAlertasStock.
type AlertaWorker struct {
	notifier AlertaNotifier
}

// NewAlertaWorker takes a nil notifier when no channel is configured; alerts
// are then only logged.
func NewAlertaWorker(notifier AlertaNotifier) *AlertaWorker {
	return &AlertaWorker{notifier: notifier}
}

func (w *AlertaWorker) Process(_ context.Context, raw json.RawMessage) error {
	var a dto.AlertaStock
	if err := json.Unmarshal(raw, &a); err != nil {
		return permanente(fmt.Errorf("alerta_worker: invalid payload: %w", err))
	}
	return w.enviar(a)
}

// EnqueueAlertaStock sends the alert inline. It lets the relay deliver alerts
// when Redis is not configured and there is no queue to push to.
func (w *AlertaWorker) EnqueueAlertaStock(_ context.Context, a dto.AlertaStock) error {
	return w.enviar(a)
}

func (w *AlertaWorker) enviar(a dto.AlertaStock) error {
	if w.notifier == nil {
		log.Warn().
			Str("producto_id", a.ProductoID).
			Str("nombre", a.Nombre).
			Int("stock_actual", a.StockActual).
			Int("stock_minimo", a.StockMinimo).
			Msg("alerta_worker: stock bajo (sin canal de notificacion)")
		return nil
	}
	if err := w.notifier.EnviarAlertaStock(a); err != nil {
		return err
	}
	log.Info().Str("producto_id", a.ProductoID).Str("venta_id", a.VentaID).Msg("alerta_worker: alerta enviada")
	return nil
}
