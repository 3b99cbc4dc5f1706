package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/clinic-keeper/internal/client"
	"github.com/MKhiriev/clinic-keeper/models"
)

func newReservationsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"res"},
		Short:   "List reservations with their patient data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *client.App) error {
				views, err := app.Services.Reservations.List(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tTIME\tPATIENT\tPHONE\tAGE\tGENDER")
				for _, v := range views {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
						v.Reservation.ID, v.Reservation.Date, v.Reservation.Time,
						v.Patient.FullName, v.Patient.PhoneNumber, v.Patient.Age, v.Patient.Gender)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(newCreateReservationCmd(opts))
	return cmd
}

func newCreateReservationCmd(opts *options) *cobra.Command {
	var req models.ManualReservationRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book a patient by hand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *client.App) error {
				view, err := app.Services.Reservations.CreateManual(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created reservation %d for %s\n", view.Reservation.ID, view.Patient.FullName)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Date, "date", "", "reservation date, YYYY-MM-DD")
	f.StringVar(&req.Time, "time", "", "reservation time, HH:MM")
	f.StringVar(&req.FullName, "name", "", "patient full name")
	f.StringVar(&req.PhoneNumber, "phone", "", "patient phone number")
	f.StringVar(&req.Age, "age", "", "patient age")
	f.StringVar(&req.Gender, "gender", "", "patient gender")
	f.StringVar(&req.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}
