// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for
// clinic-keeper. It is populated by merging values from command-line flag
// overrides, a .env file, environment variables, an optional JSON file and
// finally the built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env:       direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds the encryption secrets and the environment fingerprint.
	App App `envPrefix:"APP_"`

	// Storage selects and configures the persistent key-value backend.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds the API server address and request timeout.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Security holds throttling, cache, session and monitor thresholds.
	Security Security `envPrefix:"SECURITY_"`

	// Workers holds background job intervals.
	Workers Workers `envPrefix:"WORKERS_"`

	// LogPath is the file client logs are appended to.
	// Env: LOG_PATH
	LogPath string `env:"LOG_PATH"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Env: CONFIG
	JSONFilePath string `env:"CONFIG"`

	// DotEnvPath is the optional .env file loaded into the process
	// environment before env parsing. Set via flags only.
	DotEnvPath string
}

// App holds application-level configuration values.
type App struct {
	// EncryptionKey is the optional secret the store key is derived from.
	// When empty, it is derived from Origin (non-secret fallback).
	// Env: APP_ENCRYPTION_KEY
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// EncryptionSalt is the optional salt for the store key derivation.
	// When empty, it is derived from UserAgent.
	// Env: APP_ENCRYPTION_SALT
	EncryptionSalt string `env:"ENCRYPTION_SALT"`

	// Origin identifies the dashboard deployment (scheme://host).
	// Env: APP_ORIGIN
	Origin string `env:"ORIGIN"`

	// UserAgent is the client fingerprint recorded in every session.
	// Env: APP_USER_AGENT
	UserAgent string `env:"USER_AGENT"`

	// StorePrefix namespaces every record written by the secure store.
	// Env: APP_STORE_PREFIX
	StorePrefix string `env:"STORE_PREFIX"`
}

// Storage groups the persistent backend settings.
type Storage struct {
	// Driver is one of "sqlite", "file", "redis" or "memory".
	// Env: STORAGE_DRIVER
	Driver string `env:"DRIVER"`

	// DB holds sqlite settings.
	DB DB `envPrefix:"DB_"`

	// File holds JSON-file backend settings.
	File File `envPrefix:"FILE_"`

	// Redis holds redis backend settings.
	Redis Redis `envPrefix:"REDIS_"`
}

// DB holds connection settings for the sqlite backend.
type DB struct {
	// DSN is the sqlite file path or URI.
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// File holds settings for the JSON-file backend.
type File struct {
	// Path is the JSON file holding every record.
	// Env: STORAGE_FILE_PATH
	Path string `env:"PATH"`
}

// Redis holds settings for the redis backend.
type Redis struct {
	// Address is the redis server in host:port form.
	// Env: STORAGE_REDIS_ADDRESS
	Address string `env:"ADDRESS"`
	// Password is the optional redis AUTH password.
	// Env: STORAGE_REDIS_PASSWORD
	Password string `env:"PASSWORD"`
	// DB is the redis logical database index.
	// Env: STORAGE_REDIS_DB
	DB int `env:"DB"`
}

// Adapter holds configuration for the REST API client.
type Adapter struct {
	// HTTPAddress is the API base address, with or without scheme.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds every outbound request, including the shared
	// token refresh call.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Security holds the thresholds of the store, session registry, token
// manager and security monitor.
type Security struct {
	// MaxAttempts is the per-key operation budget inside BlockDuration.
	MaxAttempts int `env:"MAX_ATTEMPTS"`
	// BlockDuration is the access-counter window.
	BlockDuration time.Duration `env:"BLOCK_DURATION"`
	// CacheTTL bounds the age of in-memory read cache entries.
	CacheTTL time.Duration `env:"CACHE_TTL"`
	// CacheSize bounds the number of read cache entries.
	CacheSize int `env:"CACHE_SIZE"`
	// SessionTimeout is the idle time after which a session is invalid.
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT"`
	// MaxSessions caps live sessions per user.
	MaxSessions int `env:"MAX_SESSIONS"`
	// RefreshThreshold is how close to expiry a token read triggers refresh.
	RefreshThreshold time.Duration `env:"REFRESH_THRESHOLD"`
	// EventSink is "http", "amqp" or "none".
	EventSink string `env:"EVENT_SINK"`
	// AMQPURL is the broker URL used when EventSink is "amqp".
	AMQPURL string `env:"AMQP_URL"`
	// AMQPQueue is the queue security events are published to.
	AMQPQueue string `env:"AMQP_QUEUE"`
}

// Workers holds configuration for background jobs.
type Workers struct {
	// SweepInterval is how often expired sessions and stale monitor
	// counters are removed.
	// Env: WORKERS_SWEEP_INTERVAL
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`
}

// Defaults returns the built-in configuration. It is merged last, so it only
// fills fields no other source set.
func Defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			Origin:      "http://localhost:3000",
			UserAgent:   "clinic-keeper",
			StorePrefix: "clinic_secure",
		},
		Storage: Storage{
			Driver: DriverSQLite,
			DB:     DB{DSN: "clinic-keeper.db"},
			File:   File{Path: "clinic-keeper.json"},
			Redis:  Redis{Address: "localhost:6379"},
		},
		Adapter: Adapter{
			HTTPAddress:    "http://localhost:8000",
			RequestTimeout: 15 * time.Second,
		},
		Security: Security{
			MaxAttempts:      10,
			BlockDuration:    15 * time.Minute,
			CacheTTL:         5 * time.Minute,
			CacheSize:        128,
			SessionTimeout:   24 * time.Hour,
			MaxSessions:      5,
			RefreshThreshold: 5 * time.Minute,
			EventSink:        SinkHTTP,
			AMQPQueue:        "security_events",
		},
		Workers: Workers{
			SweepInterval: 5 * time.Minute,
		},
	}
}

// Storage drivers accepted by Storage.Driver.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Security event sinks accepted by Security.EventSink.
const (
	SinkHTTP = "http"
	SinkAMQP = "amqp"
	SinkNone = "none"
)

// GetStructuredConfig loads and merges the configuration from all available
// sources. Earlier sources win for non-zero fields:
//  1. Command-line flag overrides
//  2. Environment variables (after loading the optional .env file)
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
func GetStructuredConfig(overrides *StructuredConfig) (*StructuredConfig, error) {
	return newConfigBuilder().
		withFlags(overrides).
		withDotEnv().
		withEnv().
		withJSON().
		withDefaults().
		build()
}
