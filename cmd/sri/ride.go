package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	infrapdf "github.com/jhoicas/sri-comprobantes/internal/infrastructure/pdf"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
)

func newRideCmd(a *app) *cobra.Command {
	var clave, numero, fecha, out string
	cmd := &cobra.Command{
		Use:   "ride [comprobante.xml]",
		Short: "Genera el RIDE (PDF) de un comprobante",
		Long: `Genera la representación impresa del comprobante.

Con un archivo XML el RIDE se arma sin consultar la base; --autorizacion y --fecha
completan los datos de autorización. Con --clave se usa el registro de PostgreSQL,
que debe estar AUTORIZADO.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (clave == "") == (len(args) == 0) {
				return fmt.Errorf("indique un archivo XML o --clave, no ambos")
			}
			if out == "" {
				return fmt.Errorf("--out es obligatorio")
			}

			if clave != "" {
				deps, err := a.deps(cmd.Context(), true)
				if err != nil {
					return err
				}
				defer deps.Close()
				if deps.RIDE == nil {
					return fmt.Errorf("ride --clave requiere PostgreSQL (DB_ENABLED=true)")
				}
				pdf, _, err := deps.RIDE.Download(cmd.Context(), clave)
				if err != nil {
					return err
				}
				return os.WriteFile(out, pdf, 0o644)
			}

			doc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("leer %s: %w", args[0], err)
			}
			ride, err := infrasri.NewRIDEReader().Read(doc)
			if err != nil {
				return err
			}
			ride.AuthorizationNumber = numero
			if ride.AuthorizationNumber == "" {
				ride.AuthorizationNumber = ride.AccessKey
			}
			ride.AuthorizationDate = fecha
			pdf, err := infrapdf.NewMarotoRIDEGenerator().GenerateRIDE(cmd.Context(), ride)
			if err != nil {
				return err
			}
			a.log.Info().Str("clave_acceso", ride.AccessKey).Str("archivo", out).Msg("RIDE generado")
			return os.WriteFile(out, pdf, 0o644)
		},
	}
	cmd.Flags().StringVar(&clave, "clave", "", "clave de acceso registrada")
	cmd.Flags().StringVar(&numero, "autorizacion", "", "número de autorización (default la clave de acceso)")
	cmd.Flags().StringVar(&fecha, "fecha", "", "fecha de autorización")
	cmd.Flags().StringVarP(&out, "out", "o", "", "archivo PDF de salida")
	return cmd
}
