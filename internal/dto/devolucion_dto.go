package dto

import "github.com/shopspring/decimal"

type ItemDevolucionRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

type RegistrarDevolucionRequest struct {
	Items  []ItemDevolucionRequest `json:"items"  validate:"required,min=1,dive"`
	Motivo string                  `json:"motivo" validate:"max=255"`
}

type ItemDevolucionResponse struct {
	ProductoID string          `json:"producto_id"`
	Cantidad   int             `json:"cantidad"`
	Monto      decimal.Decimal `json:"monto"`
}

type DevolucionResponse struct {
	ID                  string                   `json:"id"`
	VentaID             string                   `json:"venta_id"`
	Items               []ItemDevolucionResponse `json:"items"`
	TotalReembolsado    decimal.Decimal          `json:"total_reembolsado"`
	DeudaReducida       decimal.Decimal          `json:"deuda_reducida"`
	EfectivoReembolsado decimal.Decimal          `json:"efectivo_reembolsado"`
	PuntosRevertidos    int64                    `json:"puntos_revertidos"`
	CreatedAt           string                   `json:"created_at"`
}
