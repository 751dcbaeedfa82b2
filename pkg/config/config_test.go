package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sri-comprobantes", cfg.App.Name)
	assert.Equal(t, "1", cfg.SRI.Environment)
	assert.Equal(t, "RSA-SHA1", cfg.SRI.SignatureAlgorithm)
	assert.Equal(t, 3, cfg.SRI.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.SRI.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.SRI.Timeout)
	assert.Equal(t, 2*time.Second, cfg.SRI.PollInterval)
	assert.True(t, cfg.DB.Enabled)
	assert.Equal(t, int32(10), cfg.DB.MaxConns)
	assert.Equal(t, 15*time.Second, cfg.DB.StatementTimeout)
	assert.Equal(t, 5, cfg.DB.ConnectRetries)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("SRI_AMBIENTE", "2")
	t.Setenv("SRI_RETRIES", "5")
	t.Setenv("SRI_POLL_INTERVAL_MS", "250")
	t.Setenv("SRI_RECEPTION_URL_PRODUCCION", "http://localhost:9000/recepcion")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.SRI.Environment)
	assert.Equal(t, 5, cfg.SRI.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.SRI.PollInterval)
	assert.Equal(t, "http://localhost:9000/recepcion", cfg.SRI.ReceptionURLProd)
	assert.False(t, cfg.DB.Enabled)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
}

func TestValidate(t *testing.T) {
	t.Setenv("SRI_AMBIENTE", "3")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.SRI.Environment = "1"
	cfg.SRI.CertPath = "/etc/sri/firma.p12"
	cfg.SRI.CertPassword = ""
	assert.Error(t, cfg.Validate())
}

func TestDBConfig_DSN(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "sri", Password: "p@ss:word", DBName: "sri_comprobantes", SSLMode: "disable"}
	assert.Equal(t, "postgres://sri:p%40ss%3Aword@db:5432/sri_comprobantes?sslmode=disable", c.DSN())
	c.DatabaseURL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", c.ConnectionString())
}
