package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/clinic-keeper/internal/client"
	"github.com/MKhiriev/clinic-keeper/internal/monitor"
	"github.com/MKhiriev/clinic-keeper/models"
)

func newSecurityCmd(opts *options) *cobra.Command {
	var (
		limit       int
		minSeverity string
		eventType   string
		since       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "security",
		Short: "Show security event statistics, recent events and the dashboard CSP header",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := monitor.Filter{Type: eventType, Limit: limit}
			if minSeverity != "" {
				sev, err := models.ParseSeverity(minSeverity)
				if err != nil {
					return err
				}
				filter.MinSeverity = sev
			}

			return withApp(cmd, opts, func(_ context.Context, app *client.App) error {
				if since > 0 {
					filter.Since = time.Now().Add(-since)
				}
				csp, err := app.ContentSecurityPolicy()
				if err != nil {
					return err
				}
				return renderSecurity(cmd.OutOrStdout(), app.Monitor.Stats(), app.Monitor.Events(filter), csp)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent events to show")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "lowest severity shown: low, medium, high or critical")
	cmd.Flags().StringVar(&eventType, "type", "", "only show events of this type")
	cmd.Flags().DurationVar(&since, "since", 0, "only show events newer than this")
	return cmd
}

func renderSecurity(w io.Writer, stats monitor.Stats, events []models.SecurityEvent, csp string) error {
	fmt.Fprintf(w, "events:     %d\n", stats.Total)
	fmt.Fprintf(w, "locked out: %d\n", stats.LockedOut)
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		if n := stats.BySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", sev, n)
		}
	}

	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, stats.ByType[t])
	}

	if len(events) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSEVERITY\tTYPE\tMESSAGE")
		for _, e := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Severity, e.Type, e.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nContent-Security-Policy: %s\n", csp)
	return nil
}
