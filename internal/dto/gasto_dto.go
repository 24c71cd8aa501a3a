package dto

import "github.com/shopspring/decimal"

type CrearGastoRequest struct {
	Descripcion      string          `json:"descripcion"       validate:"required,min=3,max=255"`
	Categoria        string          `json:"categoria"         validate:"omitempty,max=50"`
	Monto            decimal.Decimal `json:"monto"             validate:"required,gt=0"`
	FechaVencimiento *string         `json:"fecha_vencimiento" validate:"omitempty,datetime=2006-01-02"`
}

type PagarGastoRequest struct {
	Monto      decimal.Decimal `json:"monto"       validate:"required,gt=0"`
	MetodoPago string          `json:"metodo_pago" validate:"required,oneof=efectivo debito credito transferencia"`
	Fuente     string          `json:"fuente"      validate:"required,oneof=caja externa"`
}

type PagoGastoResponse struct {
	ID               string          `json:"id"`
	Monto            decimal.Decimal `json:"monto"`
	MetodoPago       string          `json:"metodo_pago"`
	Fuente           string          `json:"fuente"`
	MovimientoCajaID *string         `json:"movimiento_caja_id"`
	CreatedAt        string          `json:"created_at"`
}

type GastoResponse struct {
	ID               string              `json:"id"`
	Descripcion      string              `json:"descripcion"`
	Categoria        string              `json:"categoria"`
	Monto            decimal.Decimal     `json:"monto"`
	MontoPagado      decimal.Decimal     `json:"monto_pagado"`
	Estado           string              `json:"estado"`
	FechaVencimiento *string             `json:"fecha_vencimiento"`
	Pagos            []PagoGastoResponse `json:"pagos"`
	CreatedAt        string              `json:"created_at"`
}
