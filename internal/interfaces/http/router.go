package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/sri-comprobantes/internal/application/comprobantes"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Pipeline *comprobantes.Pipeline
	RIDE     *comprobantes.RIDEUseCase // nil sin persistencia
	// DefaultCredential certificado del servidor para peticiones sin p12.
	DefaultCredential comprobantes.Credential
	JWTSecret         string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	emit := RequireRole(RoleAdmin, RoleEmisor)
	read := RequireRole(RoleAdmin, RoleEmisor, RoleConsulta)

	h := NewComprobanteHandler(deps.Pipeline, deps.RIDE, deps.DefaultCredential)

	protected.Post("/access-keys", emit, h.CreateAccessKey)

	comps := protected.Group("/comprobantes")
	comps.Post("/", emit, h.Process)
	comps.Post("/sign", emit, h.Sign)
	comps.Post("/refresh", RequireRole(RoleAdmin), h.RefreshPending)
	comps.Get("/:clave/authorization", read, h.GetAuthorization)
	comps.Get("/:clave/ride", read, h.DownloadRIDE)
	comps.Get("/:clave", read, h.GetByAccessKey)
}
