package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TipoMovimientoStock string

const (
	StockEntrada    TipoMovimientoStock = "entrada"    // purchase / initial load
	StockSalida     TipoMovimientoStock = "salida"     // sale
	StockAjuste     TipoMovimientoStock = "ajuste"     // physical count correction, signed
	StockDevolucion TipoMovimientoStock = "devolucion" // customer return
)

// MovimientoStock is an append-only stock ledger entry. Cantidad is signed:
// positive adds units, negative consumes them.
type MovimientoStock struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	Tipo          TipoMovimientoStock `gorm:"type:varchar(20);not null"`
	Cantidad      int                 `gorm:"not null"`
	CostoUnitario decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	StockAnterior int                 `gorm:"not null"`
	StockNuevo    int                 `gorm:"not null"`
	Motivo        string
	ReferenciaID  *uuid.UUID `gorm:"type:uuid;index"` // venta_id or devolucion_id
	UsuarioID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
