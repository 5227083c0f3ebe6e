// AngelaMos | 2026
// ratings.go

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nfphealth/nfp-backend/internal/client"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/rating"
)

// reachable reports whether err came back from the API rather than the
// network.
func reachable(err error) bool {
	var apiErr *client.APIError
	_, isValidation := core.AsValidation(err)
	return errors.As(err, &apiErr) || isValidation
}

func newRateCmd(a *app) *cobra.Command {
	var comment string

	cmd := requireAuth(&cobra.Command{
		Use:   "rate <program-id> <stars>",
		Short: "Rate a program from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stars, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("stars must be a whole number: %w", err)
			}

			sum, err := a.rate(cmd.Context(), args[0], stars, comment)
			if err != nil {
				return explain(err)
			}
			return a.print(sum, summaryText(sum))
		},
	})
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")

	return cmd
}

// rate prefers the API and records locally when it cannot be reached.
func (a *app) rate(ctx context.Context, programID string, stars int, comment string) (rating.Summary, error) {
	sum, err := a.client.Rate(ctx, programID, stars, comment)
	if err == nil || reachable(err) {
		return sum, err
	}

	a.logger.WarnContext(ctx, "API unreachable, rating stored locally", "error", err)

	st := a.session.Snapshot()
	return a.ratings.Submit(ctx, rating.Payload{
		ProgramID: programID,
		UserID:    st.Identity.ID,
		Stars:     float64(stars),
		Comment:   comment,
	})
}

func newRatingsCmd(a *app) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "ratings <program-id>",
		Short: "Show the rating summary for a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				sum rating.Summary
				err error
			)
			if !local {
				sum, err = a.client.RatingSummary(ctx, args[0])
			}
			if local || (err != nil && !reachable(err)) {
				userID := ""
				if id := a.session.Snapshot().Identity; id != nil {
					userID = id.ID
				}
				sum, err = a.ratings.Summary(ctx, args[0], userID)
			}
			if err != nil {
				return err
			}
			return a.print(sum, summaryText(sum))
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "read ratings stored on this machine only")

	return cmd
}

func summaryText(sum rating.Summary) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %.2f from %d ratings", sum.ProgramID, sum.Avg, sum.Count)
		if err != nil {
			return err
		}
		if sum.My > 0 {
			_, err = fmt.Fprintf(w, " (yours: %d)", sum.My)
			if err != nil {
				return err
			}
		}
		_, err = fmt.Fprintln(w)
		return err
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check API reachability and the outbox backlog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			probeErr := a.monitor.Probe(ctx)
			queued, err := a.outbox.Count(ctx)
			if err != nil {
				return err
			}

			res := map[string]any{
				"api":    a.client.BaseURL(),
				"online": probeErr == nil,
				"outbox": queued,
				"role":   a.session.Role(),
			}
			return a.print(res, func(w io.Writer) error {
				state := "online"
				if probeErr != nil {
					state = "offline (" + probeErr.Error() + ")"
				}
				_, err := fmt.Fprintf(w, "api %s: %s\noutbox: %d queued\nrole: %s\n",
					a.client.BaseURL(), state, queued, a.session.Role())
				return err
			})
		},
	}
}
