// AngelaMos | 2026
// enquiry.go

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/events"
	"github.com/nfphealth/nfp-backend/internal/outbox"
	"github.com/nfphealth/nfp-backend/internal/submission"
)

func payloadFlags(cmd *cobra.Command, p *enquiry.Payload) {
	consent := (*bool)(&p.Consent)

	cmd.Flags().StringVar(&p.Name, "name", "", "your full name")
	cmd.Flags().StringVar(&p.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&p.Program, "program", "", "program of interest")
	cmd.Flags().StringVar(&p.Message, "message", "", "enquiry text")
	cmd.Flags().BoolVar(consent, "consent", false, "agree to be contacted")
}

func newSubmitCmd(a *app) *cobra.Command {
	var (
		p       enquiry.Payload
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an enquiry, keeping a local copy",
		Long: "Submit validates the enquiry and sends it to the API. When the API is " +
			"unreachable the enquiry is stored locally instead. With --offline it is " +
			"queued in the outbox for a later flush.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if offline {
				entry, err := a.outbox.Enqueue(ctx, p)
				if err != nil {
					return err
				}
				return a.print(entry, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "queued %s for later delivery\n", entry.ID)
					return err
				})
			}

			res, err := a.pipeline.Submit(ctx, p)
			if err != nil {
				return explain(err)
			}
			return a.print(res, func(w io.Writer) error {
				if res.Fallback {
					_, err := fmt.Fprintln(w, "API unreachable; enquiry saved locally")
					return err
				}
				_, err := fmt.Fprintf(w, "enquiry submitted (id %s)\n", res.ID)
				return err
			})
		},
	}
	payloadFlags(cmd, &p)
	cmd.Flags().BoolVar(&offline, "offline", false, "queue in the outbox instead of sending")

	return cmd
}

func newOutboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay queued enquiries",
	}

	var p enquiry.Payload
	enqueue := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue an enquiry without sending it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := a.outbox.Enqueue(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.print(entry, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, entry.ID)
				return err
			})
		},
	}
	payloadFlags(enqueue, &p)

	count := &cobra.Command{
		Use:   "count",
		Short: "Print the number of queued enquiries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.outbox.Count(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(map[string]int{"count": n}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, n)
				return err
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List queued enquiries oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.outbox.Entries(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(entries, func(w io.Writer) error {
				return writeEntries(w, entries)
			})
		},
	}

	flush := &cobra.Command{
		Use:   "flush",
		Short: "Replay queued enquiries once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sent, err := a.outbox.Flush(cmd.Context())
			if err != nil {
				return err
			}
			left, err := a.outbox.Count(cmd.Context())
			if err != nil {
				return err
			}
			res := map[string]int{"sent": sent, "remaining": left}
			return a.print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "sent %d, %d remaining\n", sent, left)
				return err
			})
		},
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Flush now and again whenever the API comes back online",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			unsubscribe := a.bus.Subscribe(events.EnquiryCreated, func(_ context.Context, payload any) {
				if e, ok := payload.(*enquiry.Enquiry); ok {
					fmt.Fprintf(a.out, "%s  %s  %s <%s>\n",
						e.CreatedAt.Local().Format(time.TimeOnly), e.Source, e.Name, e.Email)
				}
			})
			defer unsubscribe()

			if err := a.monitor.Probe(ctx); err != nil {
				a.logger.WarnContext(ctx, "api unreachable", "error", err)
			}
			a.outbox.AutoFlush(ctx, a.monitor.Online, a.monitor.Watch(ctx))
			return nil
		},
	}

	cmd.AddCommand(enqueue, count, list, flush, watch)
	return cmd
}

func writeEntries(w io.Writer, entries []outbox.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUEUED\tEMAIL\tPROGRAM")
	for _, e := range entries {
		queued := time.UnixMilli(e.EnqueuedAt).Local().Format(time.DateTime)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, queued, e.Payload.Email, e.Payload.ProgramName())
	}
	return tw.Flush()
}

func newSubmissionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List enquiries",
	}

	local := &cobra.Command{
		Use:   "local",
		Short: "Show enquiries recorded on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.pipeline.Rows(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(rows, func(w io.Writer) error {
				return writeRows(w, rows)
			})
		},
	}

	var limit int
	remote := adminOnly(&cobra.Command{
		Use:   "remote",
		Short: "Show the newest enquiries stored by the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.client.Submissions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := submission.Normalize(items, time.Local, time.Now())
			return a.print(items, func(w io.Writer) error {
				return writeRows(w, rows)
			})
		},
	})
	remote.Flags().IntVar(&limit, "limit", enquiry.DefaultListLimit, "maximum rows")

	cmd.AddCommand(local, remote)
	return cmd
}

func writeRows(w io.Writer, rows []submission.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tNAME\tEMAIL\tPROGRAM\tCONSENT\tSOURCE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Time, r.Name, r.Email, r.Program, r.Consent, r.Source)
	}
	return tw.Flush()
}
