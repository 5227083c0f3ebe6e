// AngelaMos | 2026
// account.go

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nfphealth/nfp-backend/internal/session"
)

func passwordFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVar(dst, "password", envOr("NFP_PASSWORD", ""),
		"account password (env NFP_PASSWORD)")
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := guestOnly(&cobra.Command{
		Use:   "login",
		Short: "Sign in and store credentials locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.printIdentity(id, "signed in")
		},
	})
	cmd.Flags().StringVar(&email, "email", "", "account email")
	passwordFlag(cmd, &password)
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above

	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email, password string

	cmd := guestOnly(&cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, assigned, err := a.session.Register(cmd.Context(), name, email, password)
			if err != nil {
				return explain(err)
			}

			res := map[string]any{"identity": id, "role": assigned}
			return a.print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "registered %s as %s\n", id.Email, assigned)
				return err
			})
		},
	})
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	passwordFlag(cmd, &password)
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag defined above

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return requireAuth(&cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(a.out, "signed out")
			return err
		},
	})
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity and resolved role",
		RunE: func(_ *cobra.Command, _ []string) error {
			st := a.session.Snapshot()

			res := map[string]any{
				"authenticated": st.Identity != nil,
				"identity":      st.Identity,
				"role":          st.Role,
				"profile":       st.Profile,
			}
			return a.print(res, func(w io.Writer) error {
				if st.Identity == nil {
					_, err := fmt.Fprintln(w, "not signed in")
					return err
				}
				verified := "unverified"
				if st.Profile != nil && st.Profile.EmailVerified {
					verified = "verified"
				}
				_, err := fmt.Fprintf(w, "%s <%s>  role=%s  %s\n",
					st.Identity.Name, st.Identity.Email, st.Role, verified)
				return err
			})
		},
	}
}

func (a *app) printIdentity(id *session.Identity, verb string) error {
	res := map[string]any{"identity": id, "role": a.session.Role()}
	return a.print(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s as %s (%s)\n", verb, id.Email, a.session.Role())
		return err
	})
}
