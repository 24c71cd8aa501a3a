//go:build integration

package router

// Integration tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"smartpos/internal/dto"
	"smartpos/internal/infra"
	"smartpos/internal/middleware"
	"smartpos/internal/repository"
	"smartpos/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type integrationEnv struct {
	*api
	st  *repository.Set
	rdb *redis.Client
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("smartpos_test"),
		tcPostgres.WithUsername("smartpos"),
		tcPostgres.WithPassword("smartpos"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.DatabaseURL = pgURL
	cfg.RedisURL = rdURL
	cfg.TxTimeoutSeconds = 5
	cfg.LockTimeoutMS = 3000

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	st := repository.NewSet(db, repository.TxOptions{Timeout: cfg.TxTimeout(), LockTimeout: cfg.LockTimeout()})
	metrics := infra.NewMetrics()
	svcs := NewServices(cfg, st, metrics)

	return &integrationEnv{
		api: &api{
			t:       t,
			engine:  New(cfg, svcs, db, rdb, metrics),
			usuario: uuid.New(),
		},
		st:  st,
		rdb: rdb,
	}
}

// Concurrent sales of the last units: the row lock lets exactly as many
// through as there is stock and the ledger still matches afterwards.
func TestIntegration_VentasConcurrentesNoSobrevenden(t *testing.T) {
	env := setupIntegration(t)
	p := env.crearProducto("Fernet 750ml", "9000", 5, 2)

	w := env.do(http.MethodPost, "/v1/caja/abrir", middleware.RolCajero, map[string]any{"monto_inicial": "0"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body, err := json.Marshal(map[string]any{
		"items":       []map[string]any{{"producto_id": p.ID, "cantidad": 1}},
		"metodo_pago": "efectivo",
		"estado_pago": "pagado",
	})
	require.NoError(t, err)
	token := env.token(middleware.RolCajero)

	const intentos = 10
	codes := make([]int, intentos)
	var wg sync.WaitGroup
	for i := 0; i < intentos; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/ventas", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			env.engine.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	count := map[int]int{}
	for _, c := range codes {
		count[c]++
	}
	assert.Equal(t, map[int]int{http.StatusCreated: 5, http.StatusConflict: 5}, count)

	w = env.do(http.MethodGet, "/v1/inventario/productos", middleware.RolCajero, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.ProductoListResponse](t, w)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 0, list.Data[0].StockActual)

	w = env.do(http.MethodGet, "/v1/contabilidad/auditoria", middleware.RolAdministrador, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.AuditoriaResponse](t, w).OK, w.Body.String())

	w = env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// The outbox written by the sale is relayed to the Redis alert queue.
func TestIntegration_RelayEncolaAlertas(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	p := env.crearProducto("Azucar 1kg", "1200", 3, 2)

	w := env.do(http.MethodPost, "/v1/caja/abrir", middleware.RolCajero, map[string]any{"monto_inicial": "0"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(http.MethodPost, "/v1/ventas", middleware.RolCajero, map[string]any{
		"items":       []map[string]any{{"producto_id": p.ID, "cantidad": 2}},
		"metodo_pago": "efectivo",
		"estado_pago": "pagado",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	pendientes, err := env.st.Eventos.CountPendientes(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pendientes)

	relay := worker.NewRelay(worker.RelayConfig{
		Eventos: env.st.Eventos,
		Lealtad: NewServices(testConfig(), env.st, nil).Lealtad,
		Alertas: worker.NewDispatcher(env.rdb),
		DLQ:     env.rdb,
	})
	res, err := relay.ProcesarLote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Procesados)

	n, err := env.rdb.LLen(ctx, worker.QueueAlertasStock).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pendientes, err = env.st.Eventos.CountPendientes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pendientes)

	// a second pass finds nothing due
	res, err = relay.ProcesarLote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Reclamados)
}
