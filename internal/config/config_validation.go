// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

// validate checks the merged [StructuredConfig]. Per-runtime invariants are
// enforced by [ClientConfig.validate]; the structured view only rejects
// values no runtime could use.
func (cfg *StructuredConfig) validate() error {
	if cfg.Security.MaxAttempts < 0 || cfg.Security.MaxSessions < 0 || cfg.Security.CacheSize < 0 {
		return ErrInvalidSecurityConfigs
	}
	return nil
}

func (cfg *ClientConfig) validate() error {
	switch cfg.Storage.Driver {
	case DriverSQLite:
		if cfg.Storage.DB.DSN == "" {
			return ErrInvalidStorageConfigs
		}
	case DriverFile:
		if cfg.Storage.File.Path == "" {
			return ErrInvalidStorageConfigs
		}
	case DriverRedis:
		if cfg.Storage.Redis.Address == "" {
			return ErrInvalidStorageConfigs
		}
	case DriverMemory:
	default:
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.App.UserAgent == "" || cfg.App.StorePrefix == "" {
		return ErrInvalidAppConfigs
	}

	s := cfg.Security
	if s.MaxAttempts <= 0 || s.BlockDuration <= 0 || s.CacheTTL <= 0 || s.CacheSize <= 0 ||
		s.SessionTimeout <= 0 || s.MaxSessions <= 0 || s.RefreshThreshold <= 0 {
		return ErrInvalidSecurityConfigs
	}

	switch s.EventSink {
	case SinkHTTP, SinkNone:
	case SinkAMQP:
		if s.AMQPURL == "" || s.AMQPQueue == "" {
			return ErrInvalidSecurityConfigs
		}
	default:
		return ErrInvalidSecurityConfigs
	}

	if cfg.Workers.SweepInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
