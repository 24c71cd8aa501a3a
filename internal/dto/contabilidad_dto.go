package dto

import "github.com/shopspring/decimal"

// PeriodoQuery is bound from ?desde=YYYY-MM-DD&hasta=YYYY-MM-DD (hasta inclusive).
type PeriodoQuery struct {
	Desde string `form:"desde" validate:"required,datetime=2006-01-02"`
	Hasta string `form:"hasta" validate:"required,datetime=2006-01-02"`
}

type ResultadoResponse struct {
	Desde            string          `json:"desde"`
	Hasta            string          `json:"hasta"`
	CantidadVentas   int             `json:"cantidad_ventas"`
	VentasBrutas     decimal.Decimal `json:"ventas_brutas"`
	Devoluciones     decimal.Decimal `json:"devoluciones"`
	IngresoNeto      decimal.Decimal `json:"ingreso_neto"`
	ImpuestoIncluido decimal.Decimal `json:"impuesto_incluido"`
	CostoMercaderia  decimal.Decimal `json:"costo_mercaderia"`
	MargenBruto      decimal.Decimal `json:"margen_bruto"`
	MargenPct        decimal.Decimal `json:"margen_pct"`
}

type FlujoCajaResponse struct {
	Desde        string                 `json:"desde"`
	Hasta        string                 `json:"hasta"`
	SaldoInicial decimal.Decimal        `json:"saldo_inicial"`
	Ingresos     decimal.Decimal        `json:"ingresos"`
	Egresos      decimal.Decimal        `json:"egresos"`
	Devoluciones decimal.Decimal        `json:"devoluciones"`
	SaldoFinal   decimal.Decimal        `json:"saldo_final"`
	PorMetodo    map[string]SaldoMetodo `json:"por_metodo"`
}

type TramoAntiguedad struct {
	Tramo    string          `json:"tramo"`
	Cantidad int             `json:"cantidad"`
	Saldo    decimal.Decimal `json:"saldo"`
}

type AntiguedadDeudasResponse struct {
	Fecha  string            `json:"fecha"`
	Tramos []TramoAntiguedad `json:"tramos"`
	Total  decimal.Decimal   `json:"total"`
}

type ValorizacionItem struct {
	ProductoID  string          `json:"producto_id"`
	Nombre      string          `json:"nombre"`
	Stock       int             `json:"stock"`
	PrecioCosto decimal.Decimal `json:"precio_costo"`
	Valor       decimal.Decimal `json:"valor"`
}

type ValorizacionResponse struct {
	Items      []ValorizacionItem `json:"items"`
	ValorCosto decimal.Decimal    `json:"valor_costo"`
	ValorVenta decimal.Decimal    `json:"valor_venta"`
	Unidades   int                `json:"unidades"`
}

// Discrepancia is one failed consistency check.
type Discrepancia struct {
	Tipo       string `json:"tipo"` // stock | deuda_cliente | caja
	EntidadID  string `json:"entidad_id"`
	Registrado string `json:"registrado"`
	Calculado  string `json:"calculado"`
}

type AuditoriaResponse struct {
	ProductosRevisados int            `json:"productos_revisados"`
	ClientesRevisados  int            `json:"clientes_revisados"`
	SesionesRevisadas  int            `json:"sesiones_revisadas"`
	Discrepancias      []Discrepancia `json:"discrepancias"`
	OK                 bool           `json:"ok"`
}
