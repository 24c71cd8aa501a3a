package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	require.NoError(t, v.Unmarshal(cfg))

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout())
	assert.Equal(t, 3*time.Second, cfg.LockTimeout())
	assert.Equal(t, 30, cfg.DiasGraciaDefault)
	assert.Equal(t, LealtadDefault(), cfg.Lealtad())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: " https://caja.example.com, ,https://admin.example.com "}
	assert.Equal(t, []string{"https://caja.example.com", "https://admin.example.com"}, cfg.AllowedOrigins())
	assert.Empty(t, (&Config{}).AllowedOrigins())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PUNTOS_DIVISOR", "500")
	t.Setenv("TX_TIMEOUT_SECONDS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(500), cfg.PuntosDivisor)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout())
}
