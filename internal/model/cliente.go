package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cliente is a customer account. SaldoDeuda is the sum of the outstanding
// balance of its open debts and never exceeds LimiteCredito.
type Cliente struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre        string          `gorm:"not null"`
	Documento     *string         `gorm:"uniqueIndex"`
	Email         *string
	Telefono      *string
	LimiteCredito decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	SaldoDeuda    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PuntosSaldo   int64           `gorm:"not null;default:0"`
	DiasGracia    int             `gorm:"not null;default:30"`
	Activo        bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Cliente) TableName() string { return "clientes" }

// CreditoDisponible is the headroom left under the credit limit.
func (c *Cliente) CreditoDisponible() decimal.Decimal {
	return c.LimiteCredito.Sub(c.SaldoDeuda)
}
