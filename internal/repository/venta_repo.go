package repository

import (
	"context"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VentaRepository interface {
	// CreateTx inserts the header only; items are written by CreateItemsTx.
	CreateTx(tx *gorm.DB, v *model.Venta) error
	UpdateTx(tx *gorm.DB, v *model.Venta) error
	CreateItemsTx(tx *gorm.DB, items []model.VentaItem) error
	// FindByIDTx reads the header only, without a row lock.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	UpdateItemDevueltoTx(tx *gorm.DB, itemID uuid.UUID, cantidadDevuelta int) error
	NextTicketNumber(tx *gorm.DB) (int, error)

	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	List(ctx context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error)
	// ListFinalizadasEntre returns finalized sales in [desde, hasta) with items.
	ListFinalizadasEntre(ctx context.Context, desde, hasta time.Time) ([]model.Venta, error)
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Omit("Items").Create(v).Error
}

func (r *ventaRepo) UpdateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Omit("Items").Save(v).Error
}

func (r *ventaRepo) CreateItemsTx(tx *gorm.DB, items []model.VentaItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Omit("Producto").Create(&items).Error
}

func (r *ventaRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	if err := tx.First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	if err := forUpdate(tx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	// items are covered by the header lock: every writer locks the venta first
	if err := tx.Where("venta_id = ?", id).Order("id").Find(&v.Items).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ventaRepo) UpdateItemDevueltoTx(tx *gorm.DB, itemID uuid.UUID, cantidadDevuelta int) error {
	return tx.Model(&model.VentaItem{}).Where("id = ?", itemID).
		Update("cantidad_devuelta", cantidadDevuelta).Error
}

func (r *ventaRepo) NextTicketNumber(tx *gorm.DB) (int, error) {
	// Uses a PostgreSQL sequence for atomic ticket number generation; tx
	// already carries the transaction deadline.
	var num int
	err := tx.Raw("SELECT nextval('ventas_numero_ticket_seq')").Scan(&num).Error
	return num, err
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items.Producto").
		Where("estado = ?", model.VentaFinalizada).
		First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) List(ctx context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Venta{}).Where("estado = ?", model.VentaFinalizada)
	if filter.ClienteID != "" {
		q = q.Where("cliente_id = ?", filter.ClienteID)
	}
	if filter.EstadoPago != "" {
		q = q.Where("estado_pago = ?", filter.EstadoPago)
	}
	if filter.Fecha != "" {
		q = q.Where("DATE(created_at) = ?", filter.Fecha)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	err := q.Preload("Items.Producto").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&ventas).Error
	return ventas, total, err
}

func (r *ventaRepo) ListFinalizadasEntre(ctx context.Context, desde, hasta time.Time) ([]model.Venta, error) {
	var ventas []model.Venta
	err := r.db.WithContext(ctx).Preload("Items").
		Where("estado = ? AND created_at >= ? AND created_at < ?", model.VentaFinalizada, desde, hasta).
		Order("created_at ASC").
		Find(&ventas).Error
	return ventas, err
}
