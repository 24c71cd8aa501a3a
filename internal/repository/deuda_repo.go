package repository

import (
	"context"
	"time"

	"smartpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeudaRepository interface {
	CreateTx(tx *gorm.DB, d *model.Deuda) error
	// FindByIDTx reads the header without locking it and without payments.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Deuda, error)
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Deuda, error)
	FindByVentaIDForUpdateTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Deuda, error)
	UpdateTx(tx *gorm.DB, d *model.Deuda) error
	CreatePagoTx(tx *gorm.DB, p *model.PagoDeuda) error
	ListPagosTx(tx *gorm.DB, deudaID uuid.UUID) ([]model.PagoDeuda, error)

	ListByCliente(ctx context.Context, clienteID uuid.UUID) ([]model.Deuda, error)
	ListAbiertas(ctx context.Context) ([]model.Deuda, error)
	// MarcarVencidas flips pendiente debts past their due date to vencida.
	MarcarVencidas(ctx context.Context, ahora time.Time) (int64, error)
}

type deudaRepo struct{ db *gorm.DB }

func NewDeudaRepository(db *gorm.DB) DeudaRepository { return &deudaRepo{db: db} }

func (r *deudaRepo) CreateTx(tx *gorm.DB, d *model.Deuda) error {
	return tx.Omit("Pagos").Create(d).Error
}

func (r *deudaRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Deuda, error) {
	var d model.Deuda
	err := tx.First(&d, "id = ?", id).Error
	return &d, err
}

func (r *deudaRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Deuda, error) {
	var d model.Deuda
	err := forUpdate(tx).First(&d, "id = ?", id).Error
	return &d, err
}

func (r *deudaRepo) FindByVentaIDForUpdateTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Deuda, error) {
	var d model.Deuda
	err := forUpdate(tx).First(&d, "venta_id = ?", ventaID).Error
	return &d, err
}

func (r *deudaRepo) UpdateTx(tx *gorm.DB, d *model.Deuda) error {
	return tx.Omit("Pagos").Save(d).Error
}

func (r *deudaRepo) CreatePagoTx(tx *gorm.DB, p *model.PagoDeuda) error {
	return tx.Create(p).Error
}

func (r *deudaRepo) ListPagosTx(tx *gorm.DB, deudaID uuid.UUID) ([]model.PagoDeuda, error) {
	var pagos []model.PagoDeuda
	err := tx.Where("deuda_id = ?", deudaID).Order("created_at ASC").Find(&pagos).Error
	return pagos, err
}

func (r *deudaRepo) ListByCliente(ctx context.Context, clienteID uuid.UUID) ([]model.Deuda, error) {
	var deudas []model.Deuda
	err := r.db.WithContext(ctx).Preload("Pagos").
		Where("cliente_id = ?", clienteID).
		Order("fecha_vencimiento ASC").
		Find(&deudas).Error
	return deudas, err
}

func (r *deudaRepo) ListAbiertas(ctx context.Context) ([]model.Deuda, error) {
	var deudas []model.Deuda
	err := r.db.WithContext(ctx).
		Where("estado <> ?", model.DeudaPagada).
		Order("fecha_vencimiento ASC").
		Find(&deudas).Error
	return deudas, err
}

func (r *deudaRepo) MarcarVencidas(ctx context.Context, ahora time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Deuda{}).
		Where("estado = ? AND fecha_vencimiento < ?", model.DeudaPendiente, ahora).
		Updates(map[string]any{"estado": model.DeudaVencida, "updated_at": ahora})
	return res.RowsAffected, res.Error
}
