package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Devolucion is a customer return against a finalized sale.
// TotalReembolsado = DeudaReducida + EfectivoReembolsado.
type Devolucion struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	UsuarioID           uuid.UUID       `gorm:"type:uuid;not null"`
	Motivo              string
	TotalReembolsado    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DeudaReducida       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	EfectivoReembolsado decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CostoDevuelto       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PuntosRevertidos    int64           `gorm:"not null;default:0"`
	CreatedAt           time.Time       `gorm:"index"`

	Items []DevolucionItem `gorm:"foreignKey:DevolucionID"`
}

func (Devolucion) TableName() string { return "devoluciones" }

type DevolucionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DevolucionID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	VentaItemID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductoID    uuid.UUID       `gorm:"type:uuid;not null"`
	Cantidad      int             `gorm:"not null"`
	CostoUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Monto         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (DevolucionItem) TableName() string { return "devolucion_items" }
