package handler

import (
	"net/http"
	"time"

	"smartpos/internal/apierror"
	"smartpos/internal/dto"
	"smartpos/internal/service"

	"github.com/gin-gonic/gin"
)

type ContabilidadHandler struct{ svc service.ContabilidadService }

func NewContabilidadHandler(svc service.ContabilidadService) *ContabilidadHandler {
	return &ContabilidadHandler{svc: svc}
}

// periodo binds desde/hasta and turns the inclusive hasta into the exclusive
// upper bound the services take.
func periodo(c *gin.Context) (time.Time, time.Time, bool) {
	var q dto.PeriodoQuery
	if !bindQuery(c, &q) {
		return time.Time{}, time.Time{}, false
	}
	desde, err := parseFecha(q.Desde)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("desde invalido"))
		return time.Time{}, time.Time{}, false
	}
	hasta, err := parseFecha(q.Hasta)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("hasta invalido"))
		return time.Time{}, time.Time{}, false
	}
	if hasta.Before(desde) {
		c.JSON(http.StatusUnprocessableEntity, apierror.Validation("hasta es anterior a desde", map[string]any{
			"desde": q.Desde,
			"hasta": q.Hasta,
		}))
		return time.Time{}, time.Time{}, false
	}
	return desde, hasta.AddDate(0, 0, 1), true
}

// Resultado godoc
// @Summary Estado de resultados del periodo
// @Tags contabilidad
// @Produce json
// @Security BearerAuth
// @Param desde query string true "YYYY-MM-DD"
// @Param hasta query string true "YYYY-MM-DD, inclusive"
// @Success 200 {object} dto.ResultadoResponse
// @Failure 422 {object} apierror.Error
// @Router /v1/contabilidad/resultado [get]
func (h *ContabilidadHandler) Resultado(c *gin.Context) {
	desde, hasta, ok := periodo(c)
	if !ok {
		return
	}
	resp, err := h.svc.Resultado(c.Request.Context(), desde, hasta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FlujoCaja godoc
// @Summary Flujo de caja del periodo por metodo de pago
// @Tags contabilidad
// @Produce json
// @Security BearerAuth
// @Param desde query string true "YYYY-MM-DD"
// @Param hasta query string true "YYYY-MM-DD, inclusive"
// @Success 200 {object} dto.FlujoCajaResponse
// @Failure 422 {object} apierror.Error
// @Router /v1/contabilidad/flujo-caja [get]
func (h *ContabilidadHandler) FlujoCaja(c *gin.Context) {
	desde, hasta, ok := periodo(c)
	if !ok {
		return
	}
	resp, err := h.svc.FlujoCaja(c.Request.Context(), desde, hasta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AntiguedadDeudas godoc
// @Summary Antiguedad de saldos de deudas abiertas
// @Tags contabilidad
// @Produce json
// @Security BearerAuth
// @Param corte query string false "YYYY-MM-DD (default: hoy)"
// @Success 200 {object} dto.AntiguedadDeudasResponse
// @Router /v1/contabilidad/antiguedad-deudas [get]
func (h *ContabilidadHandler) AntiguedadDeudas(c *gin.Context) {
	corte := time.Now().UTC()
	if s := c.Query("corte"); s != "" {
		d, err := parseFecha(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("corte invalido"))
			return
		}
		corte = d
	}
	resp, err := h.svc.AntiguedadDeudas(c.Request.Context(), corte)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Valorizacion godoc
// @Summary Valorizacion del inventario a costo y a precio de venta
// @Tags contabilidad
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ValorizacionResponse
// @Router /v1/contabilidad/valorizacion [get]
func (h *ContabilidadHandler) Valorizacion(c *gin.Context) {
	resp, err := h.svc.ValorizacionInventario(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Auditoria godoc
// @Summary Recalcula stock, deudas y cajas desde sus libros
// @Tags contabilidad
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.AuditoriaResponse
// @Router /v1/contabilidad/auditoria [get]
func (h *ContabilidadHandler) Auditoria(c *gin.Context) {
	resp, err := h.svc.Auditar(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
