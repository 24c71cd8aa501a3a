package handler

import (
	"net/http"

	"smartpos/internal/dto"
	"smartpos/internal/middleware"
	"smartpos/internal/service"

	"github.com/gin-gonic/gin"
)

type DeudasHandler struct{ svc service.DeudaService }

func NewDeudasHandler(svc service.DeudaService) *DeudasHandler { return &DeudasHandler{svc: svc} }

// RegistrarPago godoc
// @Summary Registra un pago contra una deuda
// @Description El pago entra por la caja abierta del usuario. Al saldarse la deuda se acumulan puntos.
// @Tags deudas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID de la deuda"
// @Param body body dto.RegistrarPagoDeudaRequest true "Pago"
// @Success 201 {object} dto.RegistrarPagoDeudaResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error "ALREADY_PAID o REGISTER_NOT_OPEN"
// @Failure 422 {object} apierror.Error
// @Router /v1/deudas/{id}/pagos [post]
func (h *DeudasHandler) RegistrarPago(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RegistrarPagoDeudaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPago(c.Request.Context(), middleware.UsuarioID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListarPorCliente godoc
// @Summary Lista las deudas de un cliente
// @Tags deudas
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del cliente"
// @Success 200 {object} dto.DeudasClienteResponse
// @Failure 404 {object} apierror.Error
// @Router /v1/clientes/{id}/deudas [get]
func (h *DeudasHandler) ListarPorCliente(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarPorCliente(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
