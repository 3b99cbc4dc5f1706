package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MKhiriev/clinic-keeper/internal/client"
	"github.com/MKhiriev/clinic-keeper/models"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("error reading password: %w", err)
	}
	return string(pw), nil
}

func promptLine(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("error reading %s: %w", strings.TrimSuffix(prompt, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(opts *options) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the clinic API and store the tokens encrypted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if username == "" {
				if username, err = promptLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Username: "); err != nil {
					return err
				}
			}
			password, err := promptPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, app *client.App) error {
				userID, err := app.Services.Auth.Login(ctx, models.Credentials{Username: username, Password: password})
				if err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as user %s\n", userID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens and the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *client.App) error {
				app.Services.Auth.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the authentication state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, app *client.App) error {
				out := cmd.OutOrStdout()
				tokens := app.Services.Tokens

				fmt.Fprintf(out, "state:    %s\n", tokens.State())
				data, ok := tokens.Current()
				if !ok {
					return nil
				}

				valid := "no"
				if tokens.HasValidToken() {
					valid = "yes"
				}
				fmt.Fprintf(out, "user:     %s\n", data.UserID)
				fmt.Fprintf(out, "valid:    %s\n", valid)
				fmt.Fprintf(out, "expires:  %s\n", data.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "sessions: %d\n", len(app.Services.Sessions.UserSessions(data.UserID)))
				return nil
			})
		},
	}
}
