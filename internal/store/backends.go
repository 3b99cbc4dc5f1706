package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
)

// NewBackend opens the backend selected by cfg.Driver. The sqlite backend
// is migrated before it is returned.
func NewBackend(ctx context.Context, cfg config.ClientStorage, log *logger.Logger) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryBackend(), nil
	case config.DriverFile:
		return NewFileBackend(cfg.File.Path, log)
	case config.DriverRedis:
		return NewRedisBackend(ctx, cfg.Redis, log)
	case config.DriverSQLite:
		db, err := NewConnectSQLite(ctx, cfg.DB, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection error: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return NewSQLiteBackend(db, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
