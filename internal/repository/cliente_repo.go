package repository

import (
	"context"

	"smartpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClienteRepository interface {
	CreateTx(tx *gorm.DB, c *model.Cliente) error
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Cliente, error)
	// UpdateTx persists saldo_deuda and puntos_saldo; callers hold the row lock.
	UpdateTx(tx *gorm.DB, c *model.Cliente) error

	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	ListAll(ctx context.Context) ([]model.Cliente, error)
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) CreateTx(tx *gorm.DB, c *model.Cliente) error {
	return tx.Create(c).Error
}

func (r *clienteRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := forUpdate(tx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *clienteRepo) UpdateTx(tx *gorm.DB, c *model.Cliente) error {
	return tx.Model(&model.Cliente{}).Where("id = ?", c.ID).Updates(map[string]any{
		"saldo_deuda":  c.SaldoDeuda,
		"puntos_saldo": c.PuntosSaldo,
	}).Error
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *clienteRepo) ListAll(ctx context.Context) ([]model.Cliente, error) {
	var clientes []model.Cliente
	err := r.db.WithContext(ctx).Order("nombre ASC").Find(&clientes).Error
	return clientes, err
}
