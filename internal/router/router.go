package router

import (
	"smartpos/internal/config"
	"smartpos/internal/handler"
	"smartpos/internal/infra"
	"smartpos/internal/middleware"
	"smartpos/internal/repository"
	"smartpos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services groups the domain services behind the HTTP surface and the
// background workers.
type Services struct {
	Ventas       service.VentaService
	Devoluciones service.DevolucionService
	Deudas       service.DeudaService
	Caja         service.CajaService
	Gastos       service.GastoService
	Inventario   service.InventarioService
	Contabilidad service.ContabilidadService
	Lealtad      service.LealtadService
}

// NewServices builds every service over one repository set.
// Dependency graph: Handler ← Service ← Repository ← DB
func NewServices(cfg *config.Config, st *repository.Set, metrics *infra.Metrics) Services {
	reglas := service.ReglasDesdeConfig(cfg)
	return Services{
		Ventas:       service.NewVentaService(st, reglas, metrics),
		Devoluciones: service.NewDevolucionService(st, reglas, metrics),
		Deudas:       service.NewDeudaService(st, reglas, metrics),
		Caja:         service.NewCajaService(st, metrics),
		Gastos:       service.NewGastoService(st, metrics),
		Inventario:   service.NewInventarioService(st, metrics),
		Contabilidad: service.NewContabilidadService(st),
		Lealtad:      service.NewLealtadService(st, reglas.Lealtad),
	}
}

// New returns a configured Gin engine. db and rdb only feed /health and may
// be nil in tests.
func New(cfg *config.Config, svcs Services, db *gorm.DB, rdb *redis.Client, metrics *infra.Metrics) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	ventasH := handler.NewVentasHandler(svcs.Ventas, svcs.Devoluciones)
	deudasH := handler.NewDeudasHandler(svcs.Deudas)
	cajaH := handler.NewCajaHandler(svcs.Caja)
	gastosH := handler.NewGastosHandler(svcs.Gastos)
	inventarioH := handler.NewInventarioHandler(svcs.Inventario)
	contabilidadH := handler.NewContabilidadHandler(svcs.Contabilidad)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	todos := middleware.RequireRole(middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador)
	supervision := middleware.RequireRole(middleware.RolSupervisor, middleware.RolAdministrador)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		v1.POST("/ventas", todos, ventasH.RegistrarVenta)
		v1.GET("/ventas", todos, ventasH.ListarVentas)
		v1.GET("/ventas/:id", todos, ventasH.ObtenerVenta)
		v1.POST("/ventas/:id/devoluciones", supervision, ventasH.RegistrarDevolucion)

		v1.POST("/deudas/:id/pagos", todos, deudasH.RegistrarPago)
		v1.GET("/clientes/:id/deudas", todos, deudasH.ListarPorCliente)

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", todos, cajaH.Abrir)
			caja.POST("/cerrar", todos, cajaH.Cerrar)
			caja.POST("/movimiento", todos, cajaH.RegistrarMovimiento)
			caja.GET("/activa", todos, cajaH.GetActiva)
			caja.GET("/:id/reporte", todos, cajaH.ObtenerReporte)
			caja.GET("/historial", supervision, cajaH.Historial)
		}

		gastos := v1.Group("/gastos", supervision)
		{
			gastos.POST("", gastosH.Crear)
			gastos.GET("/:id", gastosH.Obtener)
			gastos.POST("/:id/pagos", gastosH.Pagar)
		}

		inv := v1.Group("/inventario")
		{
			inv.GET("/productos", todos, inventarioH.ListarProductos)
			inv.POST("/productos", middleware.RequireRole(middleware.RolAdministrador), inventarioH.CrearProducto)
			inv.POST("/ajustes", supervision, inventarioH.AjustarStock)
			inv.GET("/movimientos", supervision, inventarioH.ListarMovimientos)
		}

		conta := v1.Group("/contabilidad", supervision)
		{
			conta.GET("/resultado", contabilidadH.Resultado)
			conta.GET("/flujo-caja", contabilidadH.FlujoCaja)
			conta.GET("/antiguedad-deudas", contabilidadH.AntiguedadDeudas)
			conta.GET("/valorizacion", contabilidadH.Valorizacion)
			conta.GET("/auditoria", middleware.RequireRole(middleware.RolAdministrador), contabilidadH.Auditoria)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
