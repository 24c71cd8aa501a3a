package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func token(t *testing.T, secret, usuarioID, rol string, exp time.Time) string {
	t.Helper()
	claims := JWTClaims{
		UsuarioID: usuarioID,
		Rol:       rol,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func protegido() *gin.Engine {
	r := gin.New()
	r.GET("/caja", JWTAuth(testSecret), RequireRole(RolCajero, RolSupervisor), func(c *gin.Context) {
		c.String(http.StatusOK, UsuarioID(c).String())
	})
	return r
}

func get(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := protegido()
	id := uuid.New()
	futuro := time.Now().Add(time.Hour)

	w := get(r, "/caja", token(t, testSecret, id.String(), RolCajero, futuro))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), w.Body.String())

	cases := map[string]struct {
		bearer string
		status int
	}{
		"sin token":        {"", http.StatusUnauthorized},
		"firma invalida":   {token(t, "otro", id.String(), RolCajero, futuro), http.StatusUnauthorized},
		"expirado":         {token(t, testSecret, id.String(), RolCajero, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		"usuario invalido": {token(t, testSecret, "admin", RolCajero, futuro), http.StatusUnauthorized},
		"rol sin permiso":  {token(t, testSecret, id.String(), RolAdministrador, futuro), http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.status, get(r, "/caja", tc.bearer).Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := get(r, "/", "")
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caja-3-000123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "caja-3-000123", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(3))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)
	}
	w := get(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestErrorHandlerYRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(), ErrorHandler())
	r.GET("/error", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection reset")) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	for _, path := range []string{"/error", "/panic"} {
		w := get(r, path, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.NotContains(t, w.Body.String(), "connection reset")
		assert.NotContains(t, w.Body.String(), "boom")
	}
}

func TestErrorHandler_ErrorDeDominioConservaCodigo(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/stock", func(c *gin.Context) {
		_ = c.Error(apierror.OutOfStock(uuid.NewString(), "Yerba 1kg", 3, 1))
	})
	r.GET("/escrito", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(errors.New("late failure"))
	})

	w := get(r, "/stock", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	var body apierror.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierror.CodeOutOfStock, body.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &entry))
	assert.Equal(t, "OUT_OF_STOCK", entry["code"])
	assert.Equal(t, "warn", entry["level"])

	// a response already written is left alone
	w = get(r, "/escrito", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://caja.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(method, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "https://caja.example.com")
	assert.Equal(t, "https://caja.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	w = do(http.MethodGet, "https://otro.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(http.MethodOptions, "https://caja.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)

	abierto := gin.New()
	abierto.Use(CORS(nil))
	abierto.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w = get(abierto, "/", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
