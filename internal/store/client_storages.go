package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/crypto"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
)

// ClientStorages groups the storage layer handed to the service layer.
type ClientStorages struct {
	// Backend is the raw persistent backend selected by configuration.
	Backend Backend
	// SecureStore encrypts everything written through it into Backend.
	SecureStore *SecureStore
}

// NewClientStorages opens the configured backend, derives the store key
// from the configured secrets (or their origin/user-agent fallbacks) and
// builds the secure store on top. recorder receives storage security events
// and may be nil.
func NewClientStorages(ctx context.Context, cfg *config.ClientConfig, keyChain crypto.KeyChain, recorder EventRecorder, log *logger.Logger) (*ClientStorages, error) {
	log.Info().Str("driver", cfg.Storage.Driver).Msg("creating new storages...")

	backend, err := NewBackend(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("error opening storage backend: %w", err)
	}

	secret, salt := crypto.ResolveSecrets(cfg.App.EncryptionKey, cfg.App.EncryptionSalt, cfg.App.Origin, cfg.App.UserAgent)
	if cfg.App.EncryptionKey == "" {
		log.Warn().Msg("no encryption key configured; deriving one from the origin")
	}

	cipher, err := crypto.NewCBCCipher(keyChain.DeriveStoreKey(secret, salt))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("error creating cipher: %w", err)
	}

	return &ClientStorages{
		Backend:     backend,
		SecureStore: NewSecureStore(backend, cipher, recorder, OptionsFromConfig(cfg), log),
	}, nil
}

// Close releases the backend.
func (s *ClientStorages) Close() error {
	return s.SecureStore.Close()
}
