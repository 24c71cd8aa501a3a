package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is a sellable item. PrecioVenta is the gross shelf price (tax
// included); AlicuotaIVA is the tax rate as a percentage (21.00 = 21%).
// StockActual always equals the sum of its MovimientoStock quantities.
type Producto struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CodigoBarras string          `gorm:"uniqueIndex;not null"`
	Nombre       string          `gorm:"index;not null"`
	Descripcion  *string
	Categoria    TipoCategoria   `gorm:"type:varchar(20);not null"`
	Atributos    Atributos       `gorm:"type:jsonb;not null"`
	PrecioCosto  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PrecioVenta  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AlicuotaIVA  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:21"`
	StockActual  int             `gorm:"not null;default:0"`
	StockMinimo  int             `gorm:"not null;default:5"`
	Activo       bool            `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Producto) TableName() string { return "productos" }

// BajoMinimo reports whether stock is at or below the reorder threshold.
func (p *Producto) BajoMinimo() bool { return p.StockActual <= p.StockMinimo }
