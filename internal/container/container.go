// Package container arma las dependencias compartidas por el servidor HTTP y la CLI.
package container

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/sri-comprobantes/internal/application/comprobantes"
	"github.com/jhoicas/sri-comprobantes/internal/domain/repository"
	infrapdf "github.com/jhoicas/sri-comprobantes/internal/infrastructure/pdf"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/postgres"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Container dependencias listas para usar. Cerrar con Close.
type Container struct {
	Pipeline          *comprobantes.Pipeline
	RIDE              *comprobantes.RIDEUseCase // nil sin base de datos
	SOAP              *infrasri.SOAPClient
	Repo              repository.ComprobanteRepository
	DefaultCredential comprobantes.Credential
	Algorithm         signer.Algorithm

	pool *pgxpool.Pool
}

// Build conecta la base (si DB_ENABLED), crea el esquema y arma el pipeline.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	alg, err := signer.ParseAlgorithm(cfg.SRI.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}
	c := &Container{Algorithm: alg}

	if cfg.DB.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.DB, log)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		c.pool = pool
		c.Repo = postgres.NewComprobanteRepository(pool)
	}

	if cfg.SRI.CertPath != "" {
		p12, err := os.ReadFile(cfg.SRI.CertPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("leer certificado %s: %w", cfg.SRI.CertPath, err)
		}
		c.DefaultCredential = comprobantes.Credential{P12: p12, Password: cfg.SRI.CertPassword}
	}

	c.SOAP = infrasri.NewSOAPClient(SOAPConfig(cfg.SRI), log)
	c.Pipeline = comprobantes.NewPipeline(
		infrasri.NewXMLBuilder(),
		infrasri.NewSchemaValidator(),
		nil,
		signer.NewXadesSigner(signer.Options{Algorithm: alg}),
		c.SOAP,
		c.Repo,
		comprobantes.Config{
			Algorithm:    alg,
			PollAttempts: cfg.SRI.PollAttempts,
			PollInterval: cfg.SRI.PollInterval,
		},
		log,
	)
	if c.Repo != nil {
		c.RIDE = comprobantes.NewRIDEUseCase(c.Repo, infrasri.NewRIDEReader(), infrapdf.NewMarotoRIDEGenerator())
	}
	return c, nil
}

// SOAPConfig traduce la configuración SRI_* al cliente SOAP. Las URLs vacías quedan en los defaults.
func SOAPConfig(cfg config.SRIConfig) infrasri.ClientConfig {
	return infrasri.ClientConfig{
		Endpoints: map[sricat.Environment]infrasri.Endpoints{
			sricat.EnvPruebas:    {Reception: cfg.ReceptionURLTest, Authorization: cfg.AuthorizationURLTest},
			sricat.EnvProduccion: {Reception: cfg.ReceptionURLProd, Authorization: cfg.AuthorizationURLProd},
		},
		Attempts:       cfg.Retries,
		RetryDelay:     cfg.RetryDelay,
		AttemptTimeout: cfg.Timeout,
	}
}

// Close libera el pool de conexiones.
func (c *Container) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
