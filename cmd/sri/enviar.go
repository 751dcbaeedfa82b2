package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/application/comprobantes"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

func newEnviarCmd(a *app) *cobra.Command {
	var p12Path, password, algoritmo, tipo, out string
	var persistir bool
	cmd := &cobra.Command{
		Use:   "enviar <comprobante.xml>",
		Short: "Firma, envía a recepción y consulta la autorización de un comprobante",
		Long: `Procesa un comprobante completo: control de esquema, firma XAdES-BES, envío al
servicio de recepción y sondeo de autorización. El resultado se imprime en JSON.

Un comprobante DEVUELTO termina con error después de imprimir los mensajes del SRI.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("leer %s: %w", args[0], err)
			}
			var alg signer.Algorithm
			if algoritmo != "" {
				if alg, err = signer.ParseAlgorithm(algoritmo); err != nil {
					return err
				}
			}
			deps, err := a.deps(cmd.Context(), persistir)
			if err != nil {
				return err
			}
			defer deps.Close()

			cred, err := credential(p12Path, password, deps.DefaultCredential)
			if err != nil {
				return err
			}
			res, err := deps.Pipeline.Process(cmd.Context(), comprobantes.ProcessRequest{
				XML:        doc,
				DocType:    sricat.DocumentType(tipo),
				Credential: cred,
				Algorithm:  alg,
			})
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				if out != "" {
					if werr := os.WriteFile(out, res.SignedXML, 0o644); werr != nil {
						return werr
					}
				}
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&p12Path, "p12", "", "certificado PKCS#12 (default SRI_CERT_PATH)")
	fl.StringVar(&password, "password", "", "contraseña del .p12 (default SRI_CERT_PASSWORD)")
	fl.StringVar(&algoritmo, "algoritmo", "", "algoritmo de firma (default SRI_SIGNATURE_ALGORITHM)")
	fl.StringVar(&tipo, "tipo", "", "tipo de comprobante; vacío se deduce del XML")
	fl.StringVarP(&out, "out", "o", "", "guardar el XML firmado en este archivo")
	fl.BoolVar(&persistir, "persistir", false, "registrar el comprobante en PostgreSQL")
	return cmd
}

func newAutorizarCmd(a *app) *cobra.Command {
	var persistir bool
	cmd := &cobra.Command{
		Use:   "autorizar <clave>",
		Short: "Consulta el estado de autorización de una clave de acceso",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.deps(cmd.Context(), persistir)
			if err != nil {
				return err
			}
			defer deps.Close()

			res, err := deps.Pipeline.QueryAuthorization(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&persistir, "persistir", false, "actualizar el registro en PostgreSQL")
	return cmd
}

func newPendientesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pendientes",
		Short: "Reconsulta la autorización de los comprobantes RECIBIDA registrados",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.DB.Enabled {
				return fmt.Errorf("pendientes requiere PostgreSQL (DB_ENABLED=true)")
			}
			deps, err := a.deps(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer deps.Close()

			n, err := deps.Pipeline.RefreshPending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d comprobantes con decisión final\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "máximo de comprobantes a consultar")
	return cmd
}
