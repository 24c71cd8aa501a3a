package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EstadoDeuda string

const (
	DeudaPendiente EstadoDeuda = "pendiente"
	DeudaVencida   EstadoDeuda = "vencida"
	DeudaPagada    EstadoDeuda = "pagada"
)

// Deuda is the receivable created when a sale is settled on customer credit.
// Monto is the original principal; SaldoPendiente only decreases.
type Deuda struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClienteID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	VentaID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Monto            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SaldoPendiente   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	FechaVencimiento time.Time       `gorm:"not null"`
	Estado           EstadoDeuda     `gorm:"type:varchar(20);not null;default:'pendiente'"`
	PagadaAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Pagos []PagoDeuda `gorm:"foreignKey:DeudaID"`
}

func (Deuda) TableName() string { return "deudas" }

func (d *Deuda) Abierta() bool { return d.Estado != DeudaPagada }

// PagoDeuda records one installment against a debt and the cash movement
// that settled it.
type PagoDeuda struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DeudaID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Monto            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MetodoPago       MetodoPago      `gorm:"type:varchar(20);not null"`
	MovimientoCajaID *uuid.UUID      `gorm:"type:uuid"`
	UsuarioID        uuid.UUID       `gorm:"type:uuid;not null"`
	Nota             *string
	CreatedAt        time.Time
}

func (PagoDeuda) TableName() string { return "pagos_deuda" }
