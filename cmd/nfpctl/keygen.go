// AngelaMos | 2026
// keygen.go

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfphealth/nfp-backend/internal/auth"
)

func newKeygenCmd() *cobra.Command {
	var privPath, pubPath string

	cmd := &cobra.Command{
		Use:         "keygen",
		Short:       "Generate the ES256 key pair used to sign access tokens",
		Annotations: map[string]string{annotNoApp: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.GenerateKeyPair(privPath, pubPath); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privPath, pubPath)
			return err
		},
	}
	cmd.Flags().StringVar(&privPath, "private", "keys/private.pem", "private key path")
	cmd.Flags().StringVar(&pubPath, "public", "keys/public.pem", "public key path")

	return cmd
}
