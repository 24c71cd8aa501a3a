package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EstadoGasto string

const (
	GastoPendiente EstadoGasto = "pendiente"
	GastoParcial   EstadoGasto = "parcial"
	GastoPagado    EstadoGasto = "pagado"
)

// FuenteFondos says where the money for a gasto payment came from.
type FuenteFondos string

const (
	FuenteCaja    FuenteFondos = "caja"    // taken from the open register
	FuenteExterna FuenteFondos = "externa" // bank, owner, etc. No register movement
)

// Gasto is an operating expense (rent, services, supplies).
type Gasto struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Descripcion      string          `gorm:"not null"`
	Categoria        string          `gorm:"type:varchar(50);not null;default:'general'"`
	Monto            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoPagado      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Estado           EstadoGasto     `gorm:"type:varchar(20);not null;default:'pendiente'"`
	FechaVencimiento *time.Time
	UsuarioID        uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Pagos []PagoGasto `gorm:"foreignKey:GastoID"`
}

func (Gasto) TableName() string { return "gastos" }

func (g *Gasto) Pendiente() decimal.Decimal { return g.Monto.Sub(g.MontoPagado) }

type PagoGasto struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	GastoID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Monto            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MetodoPago       MetodoPago      `gorm:"type:varchar(20);not null"`
	Fuente           FuenteFondos    `gorm:"type:varchar(20);not null"`
	SesionCajaID     *uuid.UUID      `gorm:"type:uuid"`
	MovimientoCajaID *uuid.UUID      `gorm:"type:uuid"`
	UsuarioID        uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt        time.Time
}

func (PagoGasto) TableName() string { return "pagos_gasto" }
