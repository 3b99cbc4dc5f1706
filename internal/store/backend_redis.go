package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
)

const (
	redisPingTimeout = 2 * time.Second
	redisScanCount   = 100
	redisChangesKey  = "clinic-keeper:changes"
)

// redisBackend stores records as plain redis strings. Every write also
// publishes the writer's instance id on redisChangesKey so other processes
// sharing the server can refresh their caches.
type redisBackend struct {
	client   redis.UniversalClient
	instance string
	logger   *logger.Logger
}

// NewRedisBackend connects to the redis server described by cfg.
func NewRedisBackend(ctx context.Context, cfg config.Redis, log *logger.Logger) (Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Err(err).Str("func", "NewRedisBackend").Str("addr", cfg.Address).Msg("error connecting redis")
		_ = client.Close()
		return nil, fmt.Errorf("error connecting redis: %w", err)
	}

	return newRedisBackend(client, log), nil
}

func newRedisBackend(client redis.UniversalClient, log *logger.Logger) *redisBackend {
	return &redisBackend{
		client:   client,
		instance: uuid.NewString(),
		logger:   log,
	}
}

func (b *redisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error reading record: %w", err)
	}
	return v, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("error writing record: %w", err)
	}
	b.publish(ctx)
	return nil
}

func (b *redisBackend) Remove(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("error deleting record: %w", err)
	}
	b.publish(ctx)
	return nil
}

func (b *redisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := b.client.Scan(ctx, 0, escapeGlob(prefix)+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		if k := iter.Val(); strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning keys: %w", err)
	}
	return keys, nil
}

func (b *redisBackend) RemovePrefix(ctx context.Context, prefix string) error {
	keys, err := b.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error deleting records: %w", err)
	}
	b.publish(ctx)
	return nil
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}

func (b *redisBackend) publish(ctx context.Context) {
	if err := b.client.Publish(ctx, redisChangesKey, b.instance).Err(); err != nil {
		b.logger.Debug().Err(err).Str("func", "redisBackend.publish").Msg("error publishing change notification")
	}
}

// Watch calls onChange for every change published by another instance.
func (b *redisBackend) Watch(ctx context.Context, onChange func()) error {
	sub := b.client.Subscribe(ctx, redisChangesKey)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("error subscribing to changes: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != b.instance {
					onChange()
				}
			}
		}
	}()

	return nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
