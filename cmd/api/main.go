// @title           SRI Comprobantes API
// @version         1.0
// @description     Emisión de comprobantes electrónicos del SRI Ecuador: clave de acceso, firma XAdES-BES, recepción, autorización y RIDE.
// @BasePath        /
// @securityDefinitions.apikey Bearer
// @in              header
// @name            Authorization
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/sri-comprobantes/docs"
	"github.com/jhoicas/sri-comprobantes/internal/container"
	httpRouter "github.com/jhoicas/sri-comprobantes/internal/interfaces/http"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	"github.com/jhoicas/sri-comprobantes/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración inválida")
	}
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sri", cfg.SRI.Environment).
		Bool("db", cfg.DB.Enabled).
		Msg("iniciando aplicación")

	ctx := context.Background()
	deps, err := container.Build(ctx, cfg, log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer deps.Close()
	if deps.Repo == nil {
		log.Warn().Msg("persistencia deshabilitada: consulta de registros, RIDE y refresco no disponibles")
	}

	// Los reintentos y el sondeo de autorización pueden alargar una emisión.
	writeTimeout := cfg.SRI.Timeout*time.Duration(cfg.SRI.Retries)*2 + cfg.SRI.PollInterval*time.Duration(cfg.SRI.PollAttempts)
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: writeTimeout,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    8 * 1024 * 1024,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "SRI Comprobantes API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "ambiente": cfg.SRI.Environment})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Pipeline:          deps.Pipeline,
		RIDE:              deps.RIDE,
		DefaultCredential: deps.DefaultCredential,
		JWTSecret:         cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
