package dto

import "github.com/shopspring/decimal"

// AjusteStockRequest registers purchases (entrada, positive) and count
// corrections (ajuste, signed).
type AjusteStockRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Tipo       string `json:"tipo"        validate:"required,oneof=entrada ajuste"`
	Cantidad   int    `json:"cantidad"    validate:"required,ne=0"`
	Motivo     string `json:"motivo"      validate:"required,min=3,max=255"`
}

type MovimientoStockResponse struct {
	ID            string          `json:"id"`
	ProductoID    string          `json:"producto_id"`
	Tipo          string          `json:"tipo"`
	Cantidad      int             `json:"cantidad"`
	CostoUnitario decimal.Decimal `json:"costo_unitario"`
	StockAnterior int             `json:"stock_anterior"`
	StockNuevo    int             `json:"stock_nuevo"`
	Motivo        string          `json:"motivo"`
	ReferenciaID  *string         `json:"referencia_id"`
	CreatedAt     string          `json:"created_at"`
}

type MovimientoStockListResponse struct {
	Data  []MovimientoStockResponse `json:"data"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}

// AlertaStock is the payload handed to the notification channels when a
// sale leaves a product at or below its minimum.
type AlertaStock struct {
	ProductoID   string `json:"producto_id"`
	CodigoBarras string `json:"codigo_barras"`
	Nombre       string `json:"nombre"`
	StockActual  int    `json:"stock_actual"`
	StockMinimo  int    `json:"stock_minimo"`
	VentaID      string `json:"venta_id"`
	Fecha        string `json:"fecha"`
}

// AcumulacionPuntos is the outbox payload of a scheduled loyalty accrual.
type AcumulacionPuntos struct {
	ClienteID    string `json:"cliente_id"`
	Puntos       int64  `json:"puntos"`
	ReferenciaID string `json:"referencia_id"`
}
