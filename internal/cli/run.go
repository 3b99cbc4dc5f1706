package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/clinic-keeper/internal/client"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background jobs until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *client.App) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case reason := <-app.LoginRequired():
							fmt.Fprintf(cmd.ErrOrStderr(), "local data wiped (%s), log in again\n", reason)
						}
					}
				}()

				return app.Run(ctx)
			})
		},
	}
}
