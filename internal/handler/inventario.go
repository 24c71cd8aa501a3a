package handler

import (
	"net/http"

	"smartpos/internal/dto"
	"smartpos/internal/middleware"
	"smartpos/internal/repository"
	"smartpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// CrearProducto godoc
// @Summary Alta de producto con stock inicial
// @Description El stock inicial entra por el libro de movimientos como una entrada.
// @Tags inventario
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearProductoRequest true "Producto"
// @Success 201 {object} dto.ProductoResponse
// @Failure 422 {object} apierror.Error
// @Router /v1/inventario/productos [post]
func (h *InventarioHandler) CrearProducto(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearProducto(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListarProductos godoc
// @Summary Lista productos
// @Tags inventario
// @Produce json
// @Security BearerAuth
// @Param categoria   query string false "alimento | electronica | indumentaria | general"
// @Param bajo_minimo query bool   false "Solo productos en o bajo su stock minimo"
// @Param page        query int    false "Pagina"
// @Param limit       query int    false "Registros por pagina"
// @Success 200 {object} dto.ProductoListResponse
// @Router /v1/inventario/productos [get]
func (h *InventarioHandler) ListarProductos(c *gin.Context) {
	var filter dto.ProductoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarProductos(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AjustarStock godoc
// @Summary Registra una entrada de mercaderia o un ajuste de conteo
// @Tags inventario
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AjusteStockRequest true "Ajuste"
// @Success 201 {object} dto.MovimientoStockResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error "OUT_OF_STOCK si el ajuste deja stock negativo"
// @Failure 422 {object} apierror.Error
// @Router /v1/inventario/ajustes [post]
func (h *InventarioHandler) AjustarStock(c *gin.Context) {
	var req dto.AjusteStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjustarStock(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

type movimientosQuery struct {
	ProductoID string `form:"producto_id" validate:"omitempty,uuid"`
	Tipo       string `form:"tipo"        validate:"omitempty,oneof=entrada salida devolucion ajuste"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ListarMovimientos godoc
// @Summary Libro de movimientos de stock
// @Tags inventario
// @Produce json
// @Security BearerAuth
// @Param producto_id query string false "UUID del producto"
// @Param tipo        query string false "entrada | salida | devolucion | ajuste"
// @Param page        query int    false "Pagina"
// @Param limit       query int    false "Registros por pagina"
// @Success 200 {object} dto.MovimientoStockListResponse
// @Router /v1/inventario/movimientos [get]
func (h *InventarioHandler) ListarMovimientos(c *gin.Context) {
	var q movimientosQuery
	if !bindQuery(c, &q) {
		return
	}
	filter := repository.MovimientoStockFilter{Tipo: q.Tipo, Page: q.Page, Limit: q.Limit}
	if q.ProductoID != "" {
		id := uuid.MustParse(q.ProductoID)
		filter.ProductoID = &id
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
