// Command sri opera comprobantes electrónicos del SRI desde la terminal:
// claves de acceso, firma XAdES-BES, envío, autorización y RIDE.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/application/comprobantes"
	"github.com/jhoicas/sri-comprobantes/internal/container"
	"github.com/jhoicas/sri-comprobantes/pkg/config"
	"github.com/jhoicas/sri-comprobantes/pkg/logger"
)

// Variables inyectadas en el build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app estado compartido por los subcomandos; se completa en PersistentPreRunE.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sri",
		Short: "Comprobantes electrónicos del SRI Ecuador",
		Long: `sri genera claves de acceso, firma comprobantes con XAdES-BES, los envía a los
servicios de recepción y autorización del SRI y produce el RIDE en PDF.

La configuración se toma de las variables SRI_*, DB_* y JWT_* (o de .env / config.env).

Ejemplos:
  # Clave de acceso de una factura
  sri clave --fecha 26/01/2026 --tipo 01 --ruc 1790011001001 --secuencial 1

  # Firmar y verificar
  sri firmar factura.xml --p12 firma.p12 --password secreto --out factura-firmada.xml
  sri verificar factura-firmada.xml

  # Emitir y consultar autorización
  sri enviar factura.xml --p12 firma.p12 --password secreto
  sri autorizar 2601202601179001100100110010010000000011234567813`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("cargar configuración: %w", err)
			}
			if a.logLevel != "" {
				cfg.App.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: cmd.ErrOrStderr()})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "nivel de log (trace, debug, info, warn, error, disabled)")

	root.AddCommand(
		newClaveCmd(a),
		newFirmarCmd(a),
		newVerificarCmd(),
		newVerificarP12Cmd(a),
		newEnviarCmd(a),
		newAutorizarCmd(a),
		newPendientesCmd(a),
		newRideCmd(a),
		newTokenCmd(a),
	)
	return root
}

// deps arma el contenedor. withDB=false omite PostgreSQL aunque DB_ENABLED esté activo.
func (a *app) deps(ctx context.Context, withDB bool) (*container.Container, error) {
	cfg := *a.cfg
	cfg.DB.Enabled = cfg.DB.Enabled && withDB
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return container.Build(ctx, &cfg, a.log.Zerolog())
}

// credential usa --p12/--password si se indicaron; si no, el certificado de SRI_CERT_PATH.
func credential(p12Path, password string, fallback comprobantes.Credential) (comprobantes.Credential, error) {
	if p12Path == "" {
		if len(fallback.P12) == 0 {
			return comprobantes.Credential{}, fmt.Errorf("indique --p12 o configure SRI_CERT_PATH")
		}
		if password != "" {
			fallback.Password = password
		}
		return fallback, nil
	}
	data, err := os.ReadFile(p12Path)
	if err != nil {
		return comprobantes.Credential{}, fmt.Errorf("leer %s: %w", p12Path, err)
	}
	return comprobantes.Credential{P12: data, Password: password}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeOutput escribe en el archivo indicado o, si path es vacío, en w.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
