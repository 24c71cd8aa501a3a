package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	CodigoBarras string           `json:"codigo_barras" validate:"required,min=8,max=18"`
	Nombre       string           `json:"nombre"        validate:"required,min=2,max=120"`
	Descripcion  *string          `json:"descripcion"`
	Categoria    string           `json:"categoria"     validate:"required,oneof=alimento electronica indumentaria general"`
	Atributos    json.RawMessage  `json:"atributos"     swaggertype:"object"`
	PrecioCosto  decimal.Decimal  `json:"precio_costo"  validate:"min=0"`
	PrecioVenta  decimal.Decimal  `json:"precio_venta"  validate:"required,gt=0"`
	AlicuotaIVA  *decimal.Decimal `json:"alicuota_iva"` // default 21
	StockInicial int              `json:"stock_inicial" validate:"min=0"`
	StockMinimo  int              `json:"stock_minimo"  validate:"min=0"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductoFilter struct {
	Categoria  string `form:"categoria"`
	BajoMinimo bool   `form:"bajo_minimo"`
	Page       int    `form:"page,default=1"  validate:"min=1"`
	Limit      int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID           string          `json:"id"`
	CodigoBarras string          `json:"codigo_barras"`
	Nombre       string          `json:"nombre"`
	Descripcion  *string         `json:"descripcion"`
	Categoria    string          `json:"categoria"`
	Atributos    any             `json:"atributos"`
	PrecioCosto  decimal.Decimal `json:"precio_costo"`
	PrecioVenta  decimal.Decimal `json:"precio_venta"`
	AlicuotaIVA  decimal.Decimal `json:"alicuota_iva"`
	StockActual  int             `json:"stock_actual"`
	StockMinimo  int             `json:"stock_minimo"`
	Activo       bool            `json:"activo"`
}

type ProductoListResponse struct {
	Data  []ProductoResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
