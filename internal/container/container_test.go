package container_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/internal/container"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

func baseConfig() *config.Config {
	return &config.Config{
		DB: config.DBConfig{Enabled: false},
		SRI: config.SRIConfig{
			Environment:        "1",
			SignatureAlgorithm: "RSA-SHA256",
			Retries:            2,
			RetryDelay:         100 * time.Millisecond,
			Timeout:            5 * time.Second,
		},
	}
}

func TestBuild_SinBaseDeDatos(t *testing.T) {
	c, err := container.Build(context.Background(), baseConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Pipeline)
	assert.NotNil(t, c.SOAP)
	assert.Nil(t, c.Repo)
	assert.Nil(t, c.RIDE)
	assert.Equal(t, signer.RSASHA256, c.Algorithm)
	assert.Empty(t, c.DefaultCredential.P12)
}

func TestBuild_AlgoritmoDesconocido(t *testing.T) {
	cfg := baseConfig()
	cfg.SRI.SignatureAlgorithm = "DSA-MD5"
	_, err := container.Build(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuild_CertificadoInexistente(t *testing.T) {
	cfg := baseConfig()
	cfg.SRI.CertPath = t.TempDir() + "/no-existe.p12"
	cfg.SRI.CertPassword = "x"
	_, err := container.Build(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-existe.p12")
}

func TestSOAPConfig(t *testing.T) {
	cfg := baseConfig().SRI
	cfg.ReceptionURLTest = "http://localhost:8089/recepcion"

	cc := container.SOAPConfig(cfg)
	assert.Equal(t, 2, cc.Attempts)
	assert.Equal(t, 100*time.Millisecond, cc.RetryDelay)
	assert.Equal(t, 5*time.Second, cc.AttemptTimeout)
	assert.Equal(t, "http://localhost:8089/recepcion", cc.Endpoints[sricat.EnvPruebas].Reception)
	assert.Empty(t, cc.Endpoints[sricat.EnvProduccion].Reception)
}
