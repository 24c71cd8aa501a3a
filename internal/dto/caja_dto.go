package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	PuntoDeVenta int             `json:"punto_de_venta" validate:"omitempty,min=1"`
	MontoInicial decimal.Decimal `json:"monto_inicial"  validate:"min=0"`
}

// DeclaracionArqueo is the optional per-method count declared on close.
type DeclaracionArqueo struct {
	Debito        decimal.Decimal `json:"debito"        validate:"min=0"`
	Credito       decimal.Decimal `json:"credito"       validate:"min=0"`
	Transferencia decimal.Decimal `json:"transferencia" validate:"min=0"`
}

type CerrarCajaRequest struct {
	// MontoContado is the physical cash counted in the drawer.
	MontoContado  decimal.Decimal    `json:"monto_contado" validate:"min=0"`
	Declaracion   *DeclaracionArqueo `json:"declaracion"`
	Observaciones *string            `json:"observaciones" validate:"omitempty,max=500"`
}

type MovimientoManualRequest struct {
	Tipo        string          `json:"tipo"        validate:"required,oneof=ingreso_manual egreso_manual retiro"`
	MetodoPago  string          `json:"metodo_pago" validate:"required,oneof=efectivo debito credito transferencia"`
	Monto       decimal.Decimal `json:"monto"       validate:"required,gt=0"`
	Descripcion string          `json:"descripcion" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SesionCajaResponse struct {
	ID           string          `json:"id"`
	UsuarioID    string          `json:"usuario_id"`
	PuntoDeVenta int             `json:"punto_de_venta"`
	MontoInicial decimal.Decimal `json:"monto_inicial"`
	Estado       string          `json:"estado"`
	OpenedAt     string          `json:"opened_at"`
}

type MovimientoCajaResponse struct {
	ID           string          `json:"id"`
	Tipo         string          `json:"tipo"`
	MetodoPago   string          `json:"metodo_pago"`
	Monto        decimal.Decimal `json:"monto"`
	Descripcion  string          `json:"descripcion"`
	ReferenciaID *string         `json:"referencia_id"`
	CreatedAt    string          `json:"created_at"`
}

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

// SaldoMetodo is the classified fold of one payment method.
type SaldoMetodo struct {
	Ingresos     decimal.Decimal `json:"ingresos"`
	Egresos      decimal.Decimal `json:"egresos"`
	Devoluciones decimal.Decimal `json:"devoluciones"`
	Neto         decimal.Decimal `json:"neto"`
}

type ReporteCajaResponse struct {
	SesionCajaID  string                   `json:"sesion_caja_id"`
	UsuarioID     string                   `json:"usuario_id"`
	PuntoDeVenta  int                      `json:"punto_de_venta"`
	MontoInicial  decimal.Decimal          `json:"monto_inicial"`
	PorMetodo     map[string]SaldoMetodo   `json:"por_metodo"`
	MontoEsperado decimal.Decimal          `json:"monto_esperado"` // cash: opening float + net cash
	MontoContado  *decimal.Decimal         `json:"monto_contado"`
	Desvio        *DesvioResponse          `json:"desvio"`
	Declaracion   *DeclaracionArqueo       `json:"declaracion,omitempty"`
	Estado        string                   `json:"estado"`
	Observaciones *string                  `json:"observaciones"`
	OpenedAt      string                   `json:"opened_at"`
	ClosedAt      *string                  `json:"closed_at"`
	Movimientos   []MovimientoCajaResponse `json:"movimientos,omitempty"`
}

type HistorialCajaResponse struct {
	Data  []ReporteCajaResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
