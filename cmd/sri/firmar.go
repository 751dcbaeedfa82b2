package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
)

func newFirmarCmd(a *app) *cobra.Command {
	var p12Path, password, algoritmo, out string
	cmd := &cobra.Command{
		Use:   "firmar <comprobante.xml>",
		Short: "Firma un comprobante con XAdES-BES sin enviarlo",
		Args:  cobra.ExactArgs(1),
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
			deps, err := a.deps(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			cred, err := credential(p12Path, password, deps.DefaultCredential)
			if err != nil {
				return err
			}
			signed, err := deps.Pipeline.SignOnly(cmd.Context(), doc, cred, alg)
			if err != nil {
				return err
			}
			a.log.Info().Str("clave_acceso", signed.AccessKey).Str("id_firma", signed.SignatureID).
				Str("algoritmo", string(signed.Algorithm)).Msg("comprobante firmado")
			return writeOutput(cmd.OutOrStdout(), out, signed.XML)
		},
	}
	cmd.Flags().StringVar(&p12Path, "p12", "", "certificado PKCS#12 (default SRI_CERT_PATH)")
	cmd.Flags().StringVar(&password, "password", "", "contraseña del .p12 (default SRI_CERT_PASSWORD)")
	cmd.Flags().StringVar(&algoritmo, "algoritmo", "", "RSA-SHA1, RSA-SHA256, ECDSA-SHA1 o ECDSA-SHA256")
	cmd.Flags().StringVarP(&out, "out", "o", "", "archivo de salida (default stdout)")
	return cmd
}

func newVerificarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verificar <firmado.xml>",
		Short: "Verifica digests y valor de la firma XAdES de un comprobante",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("leer %s: %w", args[0], err)
			}
			if err := signer.VerifyReferences(doc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "firma válida")
			return nil
		},
	}
}

func newVerificarP12Cmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "verificar-p12 [certificado.p12]",
		Short: "Abre un .p12 y muestra titular, emisor y vigencia",
		Long: `Abre el certificado de firma y muestra sus datos. Sin argumento usa SRI_CERT_PATH.
Termina con error si la contraseña no abre el archivo o si el certificado no está vigente.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.SRI.CertPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("indique el .p12 o configure SRI_CERT_PATH")
			}
			if password == "" {
				password = a.cfg.SRI.CertPassword
			}
			bundle, err := signer.LoadP12File(path, password)
			if err != nil {
				return err
			}
			defer bundle.Close()

			validity, verr := bundle.Validate(time.Now())
			if err := printJSON(cmd.OutOrStdout(), struct {
				signer.CertificateInfo
				Vigencia signer.ValidityReport `json:"vigencia"`
			}{bundle.Describe(), validity}); err != nil {
				return err
			}
			if verr == nil && validity.NearExpiry {
				a.log.Warn().Int("dias_restantes", validity.DaysLeft).Msg("el certificado está por caducar")
			}
			return verr
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "contraseña del .p12 (default SRI_CERT_PASSWORD)")
	return cmd
}
