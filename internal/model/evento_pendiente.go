package model

import (
	"time"

	"github.com/google/uuid"
)

type TipoEvento string

const (
	EventoAlertaStock    TipoEvento = "alerta_stock"
	EventoAcumularPuntos TipoEvento = "acumular_puntos"
)

type EstadoEvento string

const (
	EventoPendienteEstado EstadoEvento = "pendiente"
	EventoProcesado       EstadoEvento = "procesado"
	EventoFallido         EstadoEvento = "fallido"
)

// EventoPendiente is an outbox row written in the same transaction as the
// business change that produced it. Clave is unique, which makes every
// producer idempotent (insert ... on conflict do nothing).
type EventoPendiente struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Tipo        TipoEvento   `gorm:"type:varchar(30);not null;index"`
	Clave       string       `gorm:"type:varchar(120);not null;uniqueIndex"`
	Payload     string       `gorm:"type:jsonb;not null"`
	Estado      EstadoEvento `gorm:"type:varchar(20);not null;default:'pendiente'"`
	Intentos    int          `gorm:"not null;default:0"`
	NextRetryAt time.Time    `gorm:"not null;index"`
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

func (EventoPendiente) TableName() string { return "eventos_pendientes" }
