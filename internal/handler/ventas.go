package handler

import (
	"net/http"

	"smartpos/internal/dto"
	"smartpos/internal/middleware"
	"smartpos/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct {
	svc          service.VentaService
	devoluciones service.DevolucionService
}

func NewVentasHandler(svc service.VentaService, devoluciones service.DevolucionService) *VentasHandler {
	return &VentasHandler{svc: svc, devoluciones: devoluciones}
}

// RegistrarVenta godoc
// @Summary      Registrar una nueva venta
// @Description  Crea una venta en una sola transaccion: descuenta stock, aplica credito y canje de puntos, registra la caja y programa alertas de stock bajo.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RegistrarVentaRequest true "Detalle de la venta"
// @Success      201  {object} dto.VentaResponse
// @Failure      409  {object} apierror.Error "OUT_OF_STOCK, CREDIT_LIMIT_EXCEEDED o REGISTER_NOT_OPEN"
// @Failure      422  {object} apierror.Error
// @Failure      503  {object} apierror.Error "TRANSACTION_TIMEOUT, reintentable"
// @Router       /v1/ventas [post]
func (h *VentasHandler) RegistrarVenta(c *gin.Context) {
	var req dto.RegistrarVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarVenta(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ObtenerVenta godoc
// @Summary      Obtener venta
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string true "UUID de la venta"
// @Success      200  {object} dto.VentaResponse
// @Failure      404  {object} apierror.Error
// @Router       /v1/ventas/{id} [get]
func (h *VentasHandler) ObtenerVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarVentas godoc
// @Summary      Listar ventas
// @Description  Retorna lista paginada de ventas filtrada por fecha, cliente y estado de pago.
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        fecha       query string false "Fecha YYYY-MM-DD"
// @Param        cliente_id  query string false "UUID del cliente"
// @Param        estado_pago query string false "pagado | credito"
// @Param        page        query int    false "Pagina (default 1)"
// @Param        limit       query int    false "Registros por pagina (default 50)"
// @Success      200         {object} dto.VentaListResponse
// @Failure      422         {object} apierror.Error
// @Router       /v1/ventas [get]
func (h *VentasHandler) ListarVentas(c *gin.Context) {
	var filter dto.VentaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarVentas(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarDevolucion godoc
// @Summary      Registrar devolucion
// @Description  Devuelve unidades de una venta: repone stock, reduce primero la deuda de la venta y reintegra el resto por caja. Revierte los puntos acumulados en proporcion.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                         true "UUID de la venta"
// @Param        body body     dto.RegistrarDevolucionRequest true "Items devueltos"
// @Success      201  {object} dto.DevolucionResponse
// @Failure      404  {object} apierror.Error
// @Failure      409  {object} apierror.Error "REGISTER_NOT_OPEN o INSUFFICIENT_CASH_BALANCE"
// @Failure      422  {object} apierror.Error
// @Router       /v1/ventas/{id}/devoluciones [post]
func (h *VentasHandler) RegistrarDevolucion(c *gin.Context) {
	ventaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarDevolucionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.devoluciones.RegistrarDevolucion(c.Request.Context(), middleware.UsuarioID(c), ventaID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
