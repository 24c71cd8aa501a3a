package repository

import (
	"context"
	"time"

	"smartpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DevolucionRepository interface {
	// CreateTx inserts the return together with its items.
	CreateTx(tx *gorm.DB, d *model.Devolucion) error
	ListByVenta(ctx context.Context, ventaID uuid.UUID) ([]model.Devolucion, error)
	ListEntre(ctx context.Context, desde, hasta time.Time) ([]model.Devolucion, error)
}

type devolucionRepo struct{ db *gorm.DB }

func NewDevolucionRepository(db *gorm.DB) DevolucionRepository { return &devolucionRepo{db: db} }

func (r *devolucionRepo) CreateTx(tx *gorm.DB, d *model.Devolucion) error {
	return tx.Create(d).Error
}

func (r *devolucionRepo) ListByVenta(ctx context.Context, ventaID uuid.UUID) ([]model.Devolucion, error) {
	var devs []model.Devolucion
	err := r.db.WithContext(ctx).Preload("Items").Where("venta_id = ?", ventaID).Order("created_at ASC").Find(&devs).Error
	return devs, err
}

func (r *devolucionRepo) ListEntre(ctx context.Context, desde, hasta time.Time) ([]model.Devolucion, error) {
	var devs []model.Devolucion
	err := r.db.WithContext(ctx).Preload("Items").
		Where("created_at >= ? AND created_at < ?", desde, hasta).
		Order("created_at ASC").
		Find(&devs).Error
	return devs, err
}
