// AngelaMos | 2026
// admin.go

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfphealth/nfp-backend/internal/role"
	"github.com/nfphealth/nfp-backend/internal/user"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := adminOnly(&cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	})

	var email, newRole string
	setRole := &cobra.Command{
		Use:   "set-role",
		Short: "Change a user's role by email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.SetUserRole(cmd.Context(), email, newRole); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.out, "%s is now %s\n", email, role.Normalize(newRole))
			return err
		},
	}
	setRole.Flags().StringVar(&email, "email", "", "account email")
	setRole.Flags().StringVar(&newRole, "role", role.Member, "admin or member")
	_ = setRole.MarkFlagRequired("email") //nolint:errcheck // flag defined above

	var (
		after    string
		pageSize int
	)
	users := &cobra.Command{
		Use:   "users",
		Short: "List users by email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.client.Users(cmd.Context(), after, pageSize)
			if err != nil {
				return err
			}
			return a.print(page, func(w io.Writer) error {
				return writeUsers(w, page)
			})
		},
	}
	users.Flags().StringVar(&after, "after", "", "continue after this email")
	users.Flags().IntVar(&pageSize, "page-size", user.DefaultPageSize, "users per page")

	metrics := &cobra.Command{
		Use:   "metrics",
		Short: "Show dashboard totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.client.Metrics(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(m, func(w io.Writer) error {
				_, err := fmt.Fprintf(w,
					"users: %d (admins %d, members %d)\nenquiries (7d): %d\naverage rating: %.2f\n",
					m.UsersTotal, m.Admins, m.Members, m.Enquiries7d, m.AvgRating)
				return err
			})
		},
	}

	var (
		to      []string
		message string
	)
	bulk := &cobra.Command{
		Use:   "bulk-email",
		Short: "Send one message to many recipients as bcc",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.client.BulkEmail(cmd.Context(), to, message)
			if err != nil {
				return err
			}
			return a.print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "sent to %d recipients\n", res.Count)
				return err
			})
		},
	}
	bulk.Flags().StringSliceVar(&to, "to", nil, "recipient emails, comma separated")
	bulk.Flags().StringVar(&message, "message", "", "message body")

	cmd.AddCommand(setRole, users, metrics, bulk)
	return cmd
}

func writeUsers(w io.Writer, page *user.UserPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tVERIFIED")
	for _, u := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.Email, u.Name, u.Role, u.EmailVerified)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.Cursor == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "\nmore: --after %s\n", page.Cursor)
	return err
}
