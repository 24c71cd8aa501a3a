package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	Fecha      string `form:"fecha"` // YYYY-MM-DD; empty = all
	ClienteID  string `form:"cliente_id"  validate:"omitempty,uuid"`
	EstadoPago string `form:"estado_pago" validate:"omitempty,oneof=pagado credito"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

// ClienteNuevoRequest creates the customer account inside the sale
// transaction; a failed sale leaves no orphan customer behind.
type ClienteNuevoRequest struct {
	Nombre        string          `json:"nombre"         validate:"required,min=2,max=120"`
	Documento     *string         `json:"documento"      validate:"omitempty,min=5,max=20"`
	Email         *string         `json:"email"          validate:"omitempty,email"`
	Telefono      *string         `json:"telefono"       validate:"omitempty,max=30"`
	LimiteCredito decimal.Decimal `json:"limite_credito" validate:"min=0"`
	DiasGracia    *int            `json:"dias_gracia"    validate:"omitempty,min=0,max=365"`
}

type RegistrarVentaRequest struct {
	Items        []ItemVentaRequest   `json:"items"         validate:"required,min=1,dive"`
	ClienteID    *string              `json:"cliente_id"    validate:"omitempty,uuid"`
	ClienteNuevo *ClienteNuevoRequest `json:"cliente_nuevo"`
	MetodoPago   string               `json:"metodo_pago"   validate:"required,oneof=efectivo debito credito transferencia"`
	// EstadoPago: pagado settles the full total now; credito leaves
	// total - monto_pagado on the customer's account.
	EstadoPago  string           `json:"estado_pago"  validate:"required,oneof=pagado credito"`
	MontoPagado *decimal.Decimal `json:"monto_pagado"`
	// MontoRecibido is the cash tendered; any excess is returned as change.
	MontoRecibido *decimal.Decimal `json:"monto_recibido"`
	PuntosCanje   int64            `json:"puntos_canje" validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID       string          `json:"producto_id"`
	Producto         string          `json:"producto"`
	Cantidad         int             `json:"cantidad"`
	CantidadDevuelta int             `json:"cantidad_devuelta"`
	PrecioUnitario   decimal.Decimal `json:"precio_unitario"`
	AlicuotaIVA      decimal.Decimal `json:"alicuota_iva"`
	Neto             decimal.Decimal `json:"neto"`
	Impuesto         decimal.Decimal `json:"impuesto"`
	Subtotal         decimal.Decimal `json:"subtotal"`
}

type VentaResponse struct {
	ID                string              `json:"id"`
	NumeroTicket      int                 `json:"numero_ticket"`
	ClienteID         *string             `json:"cliente_id"`
	SesionCajaID      *string             `json:"sesion_caja_id"`
	Items             []ItemVentaResponse `json:"items"`
	TotalBruto        decimal.Decimal     `json:"total_bruto"`
	PuntosSolicitados int64               `json:"puntos_solicitados"`
	PuntosCanjeados   int64               `json:"puntos_canjeados"`
	DescuentoPuntos   decimal.Decimal     `json:"descuento_puntos"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Impuesto          decimal.Decimal     `json:"impuesto"`
	Total             decimal.Decimal     `json:"total"`
	MetodoPago        string              `json:"metodo_pago"`
	EstadoPago        string              `json:"estado_pago"`
	MontoPagado       decimal.Decimal     `json:"monto_pagado"`
	MontoPendiente    decimal.Decimal     `json:"monto_pendiente"`
	MontoRecibido     decimal.Decimal     `json:"monto_recibido"`
	Vuelto            decimal.Decimal     `json:"vuelto"`
	TotalDevuelto     decimal.Decimal     `json:"total_devuelto"`
	DeudaID           *string             `json:"deuda_id,omitempty"`
	FechaVencimiento  *string             `json:"fecha_vencimiento,omitempty"`
	PuntosAcumulados  int64               `json:"puntos_acumulados"`
	Estado            string              `json:"estado"`
	CreatedAt         string              `json:"created_at"`
}
