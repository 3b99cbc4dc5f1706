package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations.
type StructuredJSONConfig struct {
	App struct {
		EncryptionKey  string `json:"encryption_key"`
		EncryptionSalt string `json:"encryption_salt"`
		Origin         string `json:"origin"`
		UserAgent      string `json:"user_agent"`
		StorePrefix    string `json:"store_prefix"`
	} `json:"app,omitempty"`

	Storage struct {
		Driver string `json:"driver"`
		DB     struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
		File struct {
			Path string `json:"path"`
		} `json:"file,omitempty"`
		Redis struct {
			Address  string `json:"address"`
			Password string `json:"password"`
			DB       int    `json:"db"`
		} `json:"redis,omitempty"`
	} `json:"storage,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter,omitempty"`

	Security struct {
		MaxAttempts      int      `json:"max_attempts"`
		BlockDuration    Duration `json:"block_duration"`
		CacheTTL         Duration `json:"cache_ttl"`
		CacheSize        int      `json:"cache_size"`
		SessionTimeout   Duration `json:"session_timeout"`
		MaxSessions      int      `json:"max_sessions"`
		RefreshThreshold Duration `json:"refresh_threshold"`
		EventSink        string   `json:"event_sink"`
		AMQPURL          string   `json:"amqp_url"`
		AMQPQueue        string   `json:"amqp_queue"`
	} `json:"security,omitempty"`

	Workers struct {
		SweepInterval Duration `json:"sweep_interval"`
	} `json:"workers,omitempty"`

	LogPath string `json:"log_path"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			EncryptionKey:  jsonCfg.App.EncryptionKey,
			EncryptionSalt: jsonCfg.App.EncryptionSalt,
			Origin:         jsonCfg.App.Origin,
			UserAgent:      jsonCfg.App.UserAgent,
			StorePrefix:    jsonCfg.App.StorePrefix,
		},
		Storage: Storage{
			Driver: jsonCfg.Storage.Driver,
			DB:     DB{DSN: jsonCfg.Storage.DB.DSN},
			File:   File{Path: jsonCfg.Storage.File.Path},
			Redis: Redis{
				Address:  jsonCfg.Storage.Redis.Address,
				Password: jsonCfg.Storage.Redis.Password,
				DB:       jsonCfg.Storage.Redis.DB,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    jsonCfg.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
		},
		Security: Security{
			MaxAttempts:      jsonCfg.Security.MaxAttempts,
			BlockDuration:    time.Duration(jsonCfg.Security.BlockDuration),
			CacheTTL:         time.Duration(jsonCfg.Security.CacheTTL),
			CacheSize:        jsonCfg.Security.CacheSize,
			SessionTimeout:   time.Duration(jsonCfg.Security.SessionTimeout),
			MaxSessions:      jsonCfg.Security.MaxSessions,
			RefreshThreshold: time.Duration(jsonCfg.Security.RefreshThreshold),
			EventSink:        jsonCfg.Security.EventSink,
			AMQPURL:          jsonCfg.Security.AMQPURL,
			AMQPQueue:        jsonCfg.Security.AMQPQueue,
		},
		Workers: Workers{
			SweepInterval: time.Duration(jsonCfg.Workers.SweepInterval),
		},
		LogPath: jsonCfg.LogPath,
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
