package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/clinic-keeper/internal/adapter"
	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/crypto"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/monitor"
	"github.com/MKhiriev/clinic-keeper/internal/service"
	"github.com/MKhiriev/clinic-keeper/internal/store"
	"github.com/MKhiriev/clinic-keeper/internal/workers"
)

// App owns every long-lived component of the client.
type App struct {
	Monitor  *monitor.Monitor
	Storages *store.ClientStorages
	Server   *adapter.HTTPServerAdapter
	Services *service.Services

	apiOrigin    string
	workers      *workers.Workers
	loginRequest chan string
	logger       *logger.Logger
}

// NewApp builds the client from cfg and loads the persisted auth state.
func NewApp(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	a := &App{
		apiOrigin:    cfg.Adapter.HTTPAddress,
		loginRequest: make(chan string, 1),
		logger:       log.WithComponent("app"),
	}

	a.Monitor = monitor.New(monitor.OptionsFromConfig(cfg), log)

	storages, err := store.NewClientStorages(ctx, cfg, crypto.NewKeyChain(), a.Monitor, log)
	if err != nil {
		return nil, fmt.Errorf("create storages: %w", err)
	}
	a.Storages = storages

	a.Server, err = adapter.NewHTTPServerAdapter(cfg.Adapter, cfg.App, log)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create server adapter: %w", err)
	}

	sink, err := monitor.NewSink(cfg.Security, a.Server, log)
	if err != nil {
		// events are still logged locally
		a.logger.Warn().Err(err).Str("sink", cfg.Security.EventSink).Msg("remote security sink disabled")
	}
	if sink != nil {
		a.Monitor.SetSink(sink)
	}

	a.Services = service.NewServices(storages.SecureStore, a.Server, a.Monitor, a.Monitor, cfg, log)

	// tokens first so their session is removed before the registry and the
	// store are emptied
	a.Monitor.RegisterWiper(a.Services.Tokens)
	a.Monitor.RegisterWiper(a.Services.Sessions)
	a.Monitor.RegisterWiper(storages.SecureStore)
	a.Monitor.SetNavigator(monitor.NavigatorFunc(a.requestLogin))

	a.reload(ctx)

	a.workers = workers.NewWorkers(
		workers.NewPeriodicJob("session_sweep", cfg.Workers.SweepInterval, a.Services.Sessions.Sweep, log),
		workers.NewPeriodicJob("monitor_prune", cfg.Workers.SweepInterval, a.Monitor.Prune, log),
	)

	return a, nil
}

// ContentSecurityPolicy returns the header value the dashboard is served
// with: the default policy allowing the clinic API plus a fresh nonce.
func (a *App) ContentSecurityPolicy() (string, error) {
	nonce, err := monitor.NewNonce()
	if err != nil {
		return "", err
	}
	return monitor.DefaultCSPPolicy(a.apiOrigin).WithNonce(nonce).String(), nil
}

// reload picks up auth state written by this or another process.
func (a *App) reload(ctx context.Context) {
	if err := a.Services.Sessions.Reload(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("error reloading sessions")
	}
	if err := a.Services.Tokens.Reload(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("error reloading tokens")
	}
	a.Services.Cache.Reload(ctx)
}

func (a *App) requestLogin(reason string) {
	a.logger.Warn().Str("reason", reason).Msg("login required")
	select {
	case a.loginRequest <- reason:
	default:
	}
}

// LoginRequired delivers the reason whenever a critical security event has
// wiped local state and the user must log in again.
func (a *App) LoginRequired() <-chan string {
	return a.loginRequest
}

// Run starts the background jobs and the change watcher and blocks until ctx
// is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Storages.SecureStore.Watch(ctx, func() { a.reload(ctx) }); err != nil {
		a.logger.Warn().Err(err).Msg("changes from other processes will not be observed")
	}

	a.workers.Start(ctx)
	defer a.workers.Stop()

	a.logger.Info().Msg("client running")
	<-ctx.Done()
	a.logger.Info().Msg("client stopping")
	return nil
}

// Close waits for in-flight background work, writes pending session
// activity and releases the storage backend and the security sink.
func (a *App) Close() error {
	a.Services.Tokens.Wait()
	if err := a.Services.Sessions.Flush(context.Background()); err != nil {
		a.logger.Warn().Err(err).Msg("session activity not written")
	}
	return errors.Join(a.Monitor.Close(), a.Storages.Close())
}
