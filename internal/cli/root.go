// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package cli is the command-line surface of clinic-keeper, built with cobra.
// Every command builds a [client.App] from configuration, runs against it
// and closes it again.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/clinic-keeper/internal/client"
	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/models"
)

// Seams replaced in tests.
var (
	loadConfig = config.GetClientConfig
	newApp     = client.NewApp
	newLogger  = logger.NewClientLogger
)

type options struct {
	configPath string
	envFile    string
	storage    string
	server     string
	logPath    string
}

func (o *options) overrides() *config.StructuredConfig {
	return &config.StructuredConfig{
		JSONFilePath: o.configPath,
		DotEnvPath:   o.envFile,
		LogPath:      o.logPath,
		Storage:      config.Storage{Driver: o.storage},
		Adapter:      config.Adapter{HTTPAddress: o.server},
	}
}

// NewRootCmd returns the clinic-keeper command tree.
func NewRootCmd(info models.BuildInfo) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "clinic-keeper",
		Short:         "Local-first patient data core of the clinic dashboard",
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON config file")
	flags.StringVar(&opts.envFile, "env-file", "", "path to a .env file")
	flags.StringVar(&opts.storage, "storage", "", "storage driver: sqlite, file, redis or memory")
	flags.StringVarP(&opts.server, "server", "s", "", "clinic API address")
	flags.StringVar(&opts.logPath, "log-path", "", "file logs are appended to")

	root.AddCommand(
		newRunCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newReservationsCmd(opts),
		newCacheCmd(opts),
		newSecurityCmd(opts),
		newVersionCmd(info),
	)

	return root
}

// withApp loads the configuration, builds the app, runs fn and closes the
// app afterwards.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, app *client.App) error) error {
	cfg, err := loadConfig(opts.overrides())
	if err != nil {
		return fmt.Errorf("error getting configs: %w", err)
	}

	log := newLogger("clinic-keeper", cfg.LogPath)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init client app: %w", err)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			log.Err(cerr).Msg("error closing client app")
		}
	}()

	return fn(ctx, app)
}

// Execute runs the command tree against ctx.
func Execute(ctx context.Context, info models.BuildInfo) error {
	return NewRootCmd(info).ExecuteContext(ctx)
}
