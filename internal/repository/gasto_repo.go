package repository

import (
	"context"

	"smartpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GastoRepository interface {
	Create(ctx context.Context, g *model.Gasto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Gasto, error)

	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Gasto, error)
	UpdateTx(tx *gorm.DB, g *model.Gasto) error
	CreatePagoTx(tx *gorm.DB, p *model.PagoGasto) error
}

type gastoRepo struct{ db *gorm.DB }

func NewGastoRepository(db *gorm.DB) GastoRepository { return &gastoRepo{db: db} }

func (r *gastoRepo) Create(ctx context.Context, g *model.Gasto) error {
	return r.db.WithContext(ctx).Omit("Pagos").Create(g).Error
}

func (r *gastoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Gasto, error) {
	var g model.Gasto
	err := r.db.WithContext(ctx).Preload("Pagos").First(&g, "id = ?", id).Error
	return &g, err
}

func (r *gastoRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Gasto, error) {
	var g model.Gasto
	err := forUpdate(tx).First(&g, "id = ?", id).Error
	return &g, err
}

func (r *gastoRepo) UpdateTx(tx *gorm.DB, g *model.Gasto) error {
	return tx.Omit("Pagos").Save(g).Error
}

func (r *gastoRepo) CreatePagoTx(tx *gorm.DB, p *model.PagoGasto) error {
	return tx.Create(p).Error
}
