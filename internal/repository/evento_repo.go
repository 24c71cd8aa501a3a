package repository

import (
	"context"
	"time"

	"smartpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventoRepository is the transactional outbox.
type EventoRepository interface {
	// CreateTx inserts the event unless one with the same Clave already exists.
	CreateTx(tx *gorm.DB, e *model.EventoPendiente) error
	FindByClaveTx(tx *gorm.DB, clave string, lock Lock) (*model.EventoPendiente, error)
	MarcarProcesadoTx(tx *gorm.DB, id uuid.UUID, ahora time.Time) error

	// Claim leases up to limit due events to the caller. Rows locked by another
	// relay are skipped; claimed rows are pushed forward by lease so a crashed
	// relay's batch becomes due again.
	Claim(ctx context.Context, ahora time.Time, limit int, lease time.Duration) ([]model.EventoPendiente, error)
	MarcarProcesado(ctx context.Context, id uuid.UUID, ahora time.Time) error
	MarcarFallo(ctx context.Context, id uuid.UUID, intentos int, next time.Time, msg string, definitivo bool) error
	CountPendientes(ctx context.Context) (int64, error)
}

type eventoRepo struct{ db *gorm.DB }

func NewEventoRepository(db *gorm.DB) EventoRepository { return &eventoRepo{db: db} }

func (r *eventoRepo) CreateTx(tx *gorm.DB, e *model.EventoPendiente) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "clave"}},
		DoNothing: true,
	}).Create(e).Error
}

func (r *eventoRepo) FindByClaveTx(tx *gorm.DB, clave string, lock Lock) (*model.EventoPendiente, error) {
	var e model.EventoPendiente
	err := withLock(tx, lock).First(&e, "clave = ?", clave).Error
	return &e, err
}

func (r *eventoRepo) MarcarProcesadoTx(tx *gorm.DB, id uuid.UUID, ahora time.Time) error {
	return tx.Model(&model.EventoPendiente{}).Where("id = ?", id).Updates(map[string]any{
		"estado":       model.EventoProcesado,
		"processed_at": ahora,
		"last_error":   nil,
	}).Error
}

func (r *eventoRepo) Claim(ctx context.Context, ahora time.Time, limit int, lease time.Duration) ([]model.EventoPendiente, error) {
	var eventos []model.EventoPendiente
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("estado = ? AND next_retry_at <= ?", model.EventoPendienteEstado, ahora).
			Order("next_retry_at ASC").
			Limit(limit).
			Find(&eventos).Error
		if err != nil || len(eventos) == 0 {
			return err
		}
		ids := make([]uuid.UUID, len(eventos))
		for i, e := range eventos {
			ids[i] = e.ID
		}
		return tx.Model(&model.EventoPendiente{}).Where("id IN ?", ids).
			Update("next_retry_at", ahora.Add(lease)).Error
	})
	return eventos, err
}

func (r *eventoRepo) MarcarProcesado(ctx context.Context, id uuid.UUID, ahora time.Time) error {
	return r.MarcarProcesadoTx(r.db.WithContext(ctx), id, ahora)
}

func (r *eventoRepo) MarcarFallo(ctx context.Context, id uuid.UUID, intentos int, next time.Time, msg string, definitivo bool) error {
	estado := model.EventoPendienteEstado
	if definitivo {
		estado = model.EventoFallido
	}
	return r.db.WithContext(ctx).Model(&model.EventoPendiente{}).Where("id = ?", id).Updates(map[string]any{
		"estado":        estado,
		"intentos":      intentos,
		"next_retry_at": next,
		"last_error":    msg,
	}).Error
}

func (r *eventoRepo) CountPendientes(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.EventoPendiente{}).
		Where("estado = ?", model.EventoPendienteEstado).Count(&n).Error
	return n, err
}
