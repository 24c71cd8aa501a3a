package model

import (
	"time"

	"github.com/google/uuid"
)

type TipoMovimientoPuntos string

const (
	PuntosAcumulacion TipoMovimientoPuntos = "acumulacion"
	PuntosCanje       TipoMovimientoPuntos = "canje"
	PuntosReverso     TipoMovimientoPuntos = "reverso"
)

// MovimientoPuntos is the loyalty ledger. Puntos is signed. Clave is set for
// accruals and makes applying the same accrual twice a no-op.
type MovimientoPuntos struct {
	ID           uuid.UUID            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClienteID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	Tipo         TipoMovimientoPuntos `gorm:"type:varchar(20);not null"`
	Puntos       int64                `gorm:"not null"`
	Clave        *string              `gorm:"type:varchar(120);uniqueIndex"`
	ReferenciaID *uuid.UUID           `gorm:"type:uuid"`
	CreatedAt    time.Time
}

func (MovimientoPuntos) TableName() string { return "movimientos_puntos" }
