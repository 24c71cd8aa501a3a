package handler

import (
	"net/http"

	"smartpos/internal/dto"
	"smartpos/internal/middleware"
	"smartpos/internal/service"

	"github.com/gin-gonic/gin"
)

type GastosHandler struct{ svc service.GastoService }

func NewGastosHandler(svc service.GastoService) *GastosHandler { return &GastosHandler{svc: svc} }

// Crear godoc
// @Summary Registra un gasto a pagar
// @Tags gastos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearGastoRequest true "Gasto"
// @Success 201 {object} dto.GastoResponse
// @Failure 422 {object} apierror.Error
// @Router /v1/gastos [post]
func (h *GastosHandler) Crear(c *gin.Context) {
	var req dto.CrearGastoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Pagar godoc
// @Summary Paga un gasto total o parcialmente
// @Description fuente=caja egresa de la caja abierta del usuario; fuente=externa no mueve la caja.
// @Tags gastos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del gasto"
// @Param body body dto.PagarGastoRequest true "Pago"
// @Success 201 {object} dto.GastoResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error "ALREADY_PAID, REGISTER_NOT_OPEN o INSUFFICIENT_CASH_BALANCE"
// @Failure 422 {object} apierror.Error
// @Router /v1/gastos/{id}/pagos [post]
func (h *GastosHandler) Pagar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.PagarGastoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Pagar(c.Request.Context(), middleware.UsuarioID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener godoc
// @Summary Obtiene un gasto con sus pagos
// @Tags gastos
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del gasto"
// @Success 200 {object} dto.GastoResponse
// @Failure 404 {object} apierror.Error
// @Router /v1/gastos/{id} [get]
func (h *GastosHandler) Obtener(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
