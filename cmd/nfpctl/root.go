// AngelaMos | 2026
// root.go

package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "nfpctl",
		Short:         "Submit enquiries and manage the NFP Health Initiative API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsApp(cmd) {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config",
		envOr("NFP_CONFIG", ""), "path to a YAML config file (env NFP_CONFIG)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON output")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSubmitCmd(a),
		newOutboxCmd(a),
		newSubmissionsCmd(a),
		newRateCmd(a),
		newRatingsCmd(a),
		newStatusCmd(a),
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newAdminCmd(a),
		newKeygenCmd(),
	)

	return root
}
