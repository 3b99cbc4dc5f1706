package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/store"
	"github.com/MKhiriev/clinic-keeper/models"
)

const (
	reservationKeyPrefix = "reservation_patient_data_"
	defaultCacheOwner    = "default"
)

// patientMap is the unit of storage: all cached patients of one user.
type patientMap map[int64]models.LocalPatientRecord

// ReservationCache keeps the patient fields of manual reservations,
// encrypted, one map per user. Entries are only removed on purpose, through
// Remove or Cleanup; reading reservations never drops anything.
type ReservationCache struct {
	store  SecureKV
	owner  func() string
	logger *logger.Logger

	// serializes read-merge-write cycles of this process
	mu sync.Mutex
}

// NewReservationCache builds a cache whose namespace follows owner, usually
// [TokenManager.CurrentUserID]. A nil owner or an empty result maps to the
// "default" namespace.
func NewReservationCache(kv SecureKV, owner func() string, log *logger.Logger) *ReservationCache {
	return &ReservationCache{
		store:  kv,
		owner:  owner,
		logger: log.WithComponent("reservation_cache"),
	}
}

// Key returns the store key of the current user's map.
func (c *ReservationCache) Key() string {
	user := ""
	if c.owner != nil {
		user = c.owner()
	}
	if user == "" {
		user = defaultCacheOwner
	}
	return reservationKeyPrefix + user
}

// loadFresh reads the map bypassing the read cache. A missing or corrupted
// map reads as empty; any other failure is returned so that callers never
// overwrite a map they could not read.
func (c *ReservationCache) loadFresh(ctx context.Context, key string) (patientMap, error) {
	m := make(patientMap)
	err := c.store.TryGetFresh(ctx, key, &m)
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupted):
		return make(patientMap), nil
	default:
		return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
}

func (c *ReservationCache) write(ctx context.Context, key string, m patientMap) error {
	if err := c.store.TrySet(ctx, key, m); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

// Save upserts the patient of reservation id. The current map is re-read
// from the store before merging so writes made elsewhere survive.
func (c *ReservationCache) Save(ctx context.Context, id int64, record models.LocalPatientRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.Key()
	m, err := c.loadFresh(ctx, key)
	if err != nil {
		return err
	}

	m[id] = record
	return c.write(ctx, key, m)
}

// Get returns the cached patient of reservation id.
func (c *ReservationCache) Get(ctx context.Context, id int64) (models.LocalPatientRecord, bool) {
	all, err := c.All(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Int64("reservation_id", id).Msg("patient cache read failed")
		return models.LocalPatientRecord{}, false
	}

	rec, ok := all[id]
	return rec, ok
}

// All returns every cached patient of the current user.
func (c *ReservationCache) All(ctx context.Context) (map[int64]models.LocalPatientRecord, error) {
	m := make(patientMap)
	err := c.store.TryGet(ctx, c.Key(), &m)
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupted):
		return map[int64]models.LocalPatientRecord{}, nil
	default:
		return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
}

// Remove deletes the patient of reservation id.
func (c *ReservationCache) Remove(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.Key()
	m, err := c.loadFresh(ctx, key)
	if err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}

	delete(m, id)
	return c.write(ctx, key, m)
}

// Cleanup removes every entry whose reservation id is not in validIDs and
// returns how many were removed. It is a maintenance operation and must not
// be called while displaying reservations.
func (c *ReservationCache) Cleanup(ctx context.Context, validIDs []int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	valid := make(map[int64]struct{}, len(validIDs))
	for _, id := range validIDs {
		valid[id] = struct{}{}
	}

	key := c.Key()
	m, err := c.loadFresh(ctx, key)
	if err != nil {
		return 0, err
	}

	removed := 0
	for id := range m {
		if _, ok := valid[id]; !ok {
			delete(m, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	if err = c.write(ctx, key, m); err != nil {
		return 0, err
	}

	c.logger.Info().Int("removed", removed).Int("kept", len(m)).Msg("patient cache cleaned up")
	return removed, nil
}

// Reload drops the cached copy of the current map after another process
// changed it.
func (c *ReservationCache) Reload(context.Context) {
	c.store.Invalidate(c.Key())
}
