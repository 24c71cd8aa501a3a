package service

import (
	"encoding/json"
	"fmt"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── Notification domain ───────────────────────────────────────────────────────
// Low-stock alerts are written to the outbox inside the sale transaction, so
// an alert exists if and only if the sale committed. Delivery is the relay's
// job and is at-least-once; consumers dedupe on clave.

type notificador struct {
	eventos repository.EventoRepository
}

func claveAlertaStock(ventaID, productoID uuid.UUID) string {
	return "alerta_stock:" + ventaID.String() + ":" + productoID.String()
}

func (n *notificador) programarAlertaTx(tx *gorm.DB, p model.Producto, ventaID uuid.UUID, ahora time.Time) error {
	payload, err := json.Marshal(dto.AlertaStock{
		ProductoID:   p.ID.String(),
		CodigoBarras: p.CodigoBarras,
		Nombre:       p.Nombre,
		StockActual:  p.StockActual,
		StockMinimo:  p.StockMinimo,
		VentaID:      ventaID.String(),
		Fecha:        fechaISO(ahora),
	})
	if err != nil {
		return err
	}
	if err := n.eventos.CreateTx(tx, &model.EventoPendiente{
		ID:          uuid.New(),
		Tipo:        model.EventoAlertaStock,
		Clave:       claveAlertaStock(ventaID, p.ID),
		Payload:     string(payload),
		Estado:      model.EventoPendienteEstado,
		NextRetryAt: ahora,
		CreatedAt:   ahora,
	}); err != nil {
		return fmt.Errorf("programar alerta de stock: %w", err)
	}
	return nil
}
