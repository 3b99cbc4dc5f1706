package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/clinic-keeper/internal/client"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the local patient cache",
	}
	cmd.AddCommand(newCacheCleanupCmd(opts))
	return cmd
}

func newCacheCleanupCmd(opts *options) *cobra.Command {
	var validIDs []int64

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove cached patients of reservations that are no longer valid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *client.App) error {
				removed, err := app.Services.Reservations.Cleanup(ctx, validIDs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached patient record(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().Int64SliceVar(&validIDs, "valid-ids", nil, "reservation ids whose patient data is kept")
	_ = cmd.MarkFlagRequired("valid-ids")
	return cmd
}
