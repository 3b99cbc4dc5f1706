package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/clinic-keeper/models"
)

func newVersionCmd(info models.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info)
		},
	}
}
