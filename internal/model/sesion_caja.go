package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EstadoSesion string

const (
	SesionAbierta EstadoSesion = "abierta"
	SesionCerrada EstadoSesion = "cerrada"
)

// SesionCaja is one open/close cycle of a user's cash register.
// At most one abierta session per user (partial unique index).
type SesionCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UsuarioID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PuntoDeVenta int             `gorm:"not null;default:1"`
	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// MontoEsperado is computed on close: opening float + classified cash movements
	MontoEsperado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MontoContado  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Desvio        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DesvioPct     *decimal.Decimal `gorm:"type:decimal(7,2)"`
	Estado        EstadoSesion     `gorm:"type:varchar(20);not null;default:'abierta'"`
	// ClasificacionDesvio: "normal" | "advertencia" | "critico"
	ClasificacionDesvio *string `gorm:"type:varchar(20)"`
	Observaciones       *string
	OpenedAt            time.Time
	ClosedAt            *time.Time
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

func (s *SesionCaja) Abierta() bool { return s.Estado == SesionAbierta }

type TipoMovimientoCaja string

const (
	CajaVenta         TipoMovimientoCaja = "venta"
	CajaPagoDeuda     TipoMovimientoCaja = "pago_deuda"
	CajaIngresoManual TipoMovimientoCaja = "ingreso_manual"
	CajaEgresoManual  TipoMovimientoCaja = "egreso_manual"
	CajaPagoGasto     TipoMovimientoCaja = "pago_gasto"
	CajaRetiro        TipoMovimientoCaja = "retiro"
	CajaVuelto        TipoMovimientoCaja = "vuelto"
	CajaDevolucion    TipoMovimientoCaja = "devolucion"
)

// MovimientoCaja is an immutable event in the register ledger. Monto is a
// positive magnitude; its sign comes from classifying Tipo.
// Movements are never modified or deleted.
type MovimientoCaja struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID uuid.UUID          `gorm:"type:uuid;index;not null"`
	Tipo         TipoMovimientoCaja `gorm:"type:varchar(20);not null"`
	MetodoPago   MetodoPago         `gorm:"type:varchar(20);not null"`
	Monto        decimal.Decimal    `gorm:"type:decimal(12,2);not null"`
	Descripcion  string             `gorm:"not null"`
	// ReferenciaID links to the originating venta, deuda, gasto or devolucion
	ReferenciaID *uuid.UUID `gorm:"type:uuid"`
	UsuarioID    uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt    time.Time  `gorm:"index"`
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }
