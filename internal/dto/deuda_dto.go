package dto

import "github.com/shopspring/decimal"

type RegistrarPagoDeudaRequest struct {
	Monto      decimal.Decimal `json:"monto"       validate:"required"`
	MetodoPago string          `json:"metodo_pago" validate:"required,oneof=efectivo debito credito transferencia"`
	Nota       *string         `json:"nota"        validate:"omitempty,max=255"`
}

type PagoDeudaResponse struct {
	ID               string          `json:"id"`
	Monto            decimal.Decimal `json:"monto"`
	MetodoPago       string          `json:"metodo_pago"`
	MovimientoCajaID *string         `json:"movimiento_caja_id"`
	CreatedAt        string          `json:"created_at"`
}

type DeudaResponse struct {
	ID               string              `json:"id"`
	ClienteID        string              `json:"cliente_id"`
	VentaID          string              `json:"venta_id"`
	Monto            decimal.Decimal     `json:"monto"`
	SaldoPendiente   decimal.Decimal     `json:"saldo_pendiente"`
	FechaVencimiento string              `json:"fecha_vencimiento"`
	Estado           string              `json:"estado"`
	Pagos            []PagoDeudaResponse `json:"pagos"`
}

type RegistrarPagoDeudaResponse struct {
	Pago  PagoDeudaResponse `json:"pago"`
	Deuda DeudaResponse     `json:"deuda"`
}

type DeudasClienteResponse struct {
	ClienteID     string          `json:"cliente_id"`
	LimiteCredito decimal.Decimal `json:"limite_credito"`
	SaldoDeuda    decimal.Decimal `json:"saldo_deuda"`
	PuntosSaldo   int64           `json:"puntos_saldo"`
	Deudas        []DeudaResponse `json:"deudas"`
}
