package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/sri-comprobantes/pkg/jwt"
)

func newTokenCmd(a *app) *cobra.Command {
	var usuario, empresa, rol string
	var minutos int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un JWT para la API firmado con JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWT.Secret == "" {
				return fmt.Errorf("JWT_SECRET no configurado")
			}
			if minutos <= 0 {
				minutos = a.cfg.JWT.Expiration
			}
			tok, err := jwt.Generate(a.cfg.JWT.Secret, usuario, empresa, rol, a.cfg.JWT.Issuer, minutos)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&usuario, "usuario", "", "id del usuario (sub)")
	cmd.Flags().StringVar(&empresa, "empresa", "", "id de la empresa")
	cmd.Flags().StringVar(&rol, "rol", jwt.RoleEmisor, "admin, emisor o consulta")
	cmd.Flags().IntVar(&minutos, "minutos", 0, "vigencia (default JWT_EXPIRATION_MINUTES)")
	_ = cmd.MarkFlagRequired("usuario")
	return cmd
}
