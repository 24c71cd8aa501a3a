package repository

import (
	"smartpos/internal/model"

	"gorm.io/gorm"
)

type PuntosRepository interface {
	CreateTx(tx *gorm.DB, m *model.MovimientoPuntos) error
	ExisteClaveTx(tx *gorm.DB, clave string) (bool, error)
}

type puntosRepo struct{ db *gorm.DB }

func NewPuntosRepository(db *gorm.DB) PuntosRepository { return &puntosRepo{db: db} }

func (r *puntosRepo) CreateTx(tx *gorm.DB, m *model.MovimientoPuntos) error {
	return tx.Create(m).Error
}

func (r *puntosRepo) ExisteClaveTx(tx *gorm.DB, clave string) (bool, error) {
	var n int64
	err := tx.Model(&model.MovimientoPuntos{}).Where("clave = ?", clave).Count(&n).Error
	return n > 0, err
}
