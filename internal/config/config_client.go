package config

import (
	"fmt"
	"time"
)

// ClientApp holds the secrets and fingerprint used by the secure store and
// the session registry.
type ClientApp struct {
	EncryptionKey  string
	EncryptionSalt string
	Origin         string
	UserAgent      string
	StorePrefix    string
}

// ClientAdapter holds network settings used by the client transport layer.
type ClientAdapter struct {
	// HTTPAddress is the HTTP endpoint address used by the client.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	Driver string
	DB     DB
	File   File
	Redis  Redis
}

// ClientSecurity holds thresholds for the store, sessions, tokens and the
// security monitor.
type ClientSecurity struct {
	MaxAttempts      int
	BlockDuration    time.Duration
	CacheTTL         time.Duration
	CacheSize        int
	SessionTimeout   time.Duration
	MaxSessions      int
	RefreshThreshold time.Duration
	EventSink        string
	AMQPURL          string
	AMQPQueue        string
}

// ClientWorkers contains client background worker settings.
type ClientWorkers struct {
	// SweepInterval defines how often the session sweep runs.
	SweepInterval time.Duration
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App      ClientApp
	Adapter  ClientAdapter
	Storage  ClientStorage
	Security ClientSecurity
	Workers  ClientWorkers
	LogPath  string
}

// GetClientConfig builds and validates the client configuration. overrides
// carries values set on the command line and may be nil.
func GetClientConfig(overrides *StructuredConfig) (*ClientConfig, error) {
	cfg, err := GetStructuredConfig(overrides)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := NewClientConfig(cfg)
	return clientCfg, clientCfg.validate()
}

// NewClientConfig maps a merged [StructuredConfig] onto the client view.
func NewClientConfig(cfg *StructuredConfig) *ClientConfig {
	return &ClientConfig{
		App: ClientApp{
			EncryptionKey:  cfg.App.EncryptionKey,
			EncryptionSalt: cfg.App.EncryptionSalt,
			Origin:         cfg.App.Origin,
			UserAgent:      cfg.App.UserAgent,
			StorePrefix:    cfg.App.StorePrefix,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
		},
		Storage: ClientStorage{
			Driver: cfg.Storage.Driver,
			DB:     cfg.Storage.DB,
			File:   cfg.Storage.File,
			Redis:  cfg.Storage.Redis,
		},
		Security: ClientSecurity{
			MaxAttempts:      cfg.Security.MaxAttempts,
			BlockDuration:    cfg.Security.BlockDuration,
			CacheTTL:         cfg.Security.CacheTTL,
			CacheSize:        cfg.Security.CacheSize,
			SessionTimeout:   cfg.Security.SessionTimeout,
			MaxSessions:      cfg.Security.MaxSessions,
			RefreshThreshold: cfg.Security.RefreshThreshold,
			EventSink:        cfg.Security.EventSink,
			AMQPURL:          cfg.Security.AMQPURL,
			AMQPQueue:        cfg.Security.AMQPQueue,
		},
		Workers: ClientWorkers{SweepInterval: cfg.Workers.SweepInterval},
		LogPath: cfg.LogPath,
	}
}
