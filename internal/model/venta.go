package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoPago tells how the sale total was settled.
type EstadoPago string

const (
	EstadoPagoPagado  EstadoPago = "pagado"  // fully settled at the counter
	EstadoPagoCredito EstadoPago = "credito" // remainder owed on customer account
)

// EstadoVenta: a sale row is written as borrador inside the sale transaction
// and only ever becomes visible as finalizada.
type EstadoVenta string

const (
	VentaBorrador   EstadoVenta = "borrador"
	VentaFinalizada EstadoVenta = "finalizada"
)

// Venta is the header of a completed sale.
//
//	TotalBruto      = Σ item.Subtotal (gross, tax included)
//	Total           = TotalBruto - DescuentoPuntos
//	Subtotal + Impuesto = Total
type Venta struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroTicket    int             `gorm:"uniqueIndex;not null"`
	UsuarioID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClienteID       *uuid.UUID      `gorm:"type:uuid;index"`
	SesionCajaID    *uuid.UUID      `gorm:"type:uuid;index"`
	TotalBruto      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DescuentoPuntos decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PuntosCanjeados int64           `gorm:"not null;default:0"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Impuesto        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MetodoPago      MetodoPago      `gorm:"type:varchar(20);not null"`
	EstadoPago      EstadoPago      `gorm:"type:varchar(20);not null"`
	MontoPagado     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontoRecibido   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Vuelto          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalDevuelto   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Estado          EstadoVenta     `gorm:"type:varchar(20);not null;default:'borrador'"`
	CreatedAt       time.Time       `gorm:"index"`
	UpdatedAt       time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID"`
}

func (Venta) TableName() string { return "ventas" }

// FactorDescuento scales gross line amounts down to what the customer
// actually paid after redeeming points.
func (v *Venta) FactorDescuento() decimal.Decimal {
	if v.TotalBruto.IsZero() {
		return decimal.NewFromInt(1)
	}
	return v.Total.Div(v.TotalBruto)
}

// VentaItem snapshots price, tax rate and unit cost at the time of sale so
// later price changes never alter historical margins.
type VentaItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Cantidad         int             `gorm:"not null"`
	CantidadDevuelta int             `gorm:"not null;default:0"`
	PrecioUnitario   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CostoUnitario    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AlicuotaIVA      decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Neto             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Impuesto         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (VentaItem) TableName() string { return "venta_items" }

func (i *VentaItem) Pendiente() int { return i.Cantidad - i.CantidadDevuelta }
