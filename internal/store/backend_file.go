package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/MKhiriev/clinic-keeper/internal/logger"
)

type filePersistedState struct {
	Version int               `json:"version"`
	Items   map[string]string `json:"items"`
}

const fileStateVersion = 1

// fileBackend keeps every record in one JSON document on disk. Reads are
// served from the in-memory copy; the copy is refreshed when another
// process rewrites the file (see Watch).
type fileBackend struct {
	path   string
	logger *logger.Logger

	mu          sync.RWMutex
	items       map[string]string
	lastWritten [sha256.Size]byte
}

// NewFileBackend opens (or lazily creates) the JSON store at path.
func NewFileBackend(path string, log *logger.Logger) (Backend, error) {
	b := &fileBackend{
		path:   path,
		logger: log,
		items:  make(map[string]string),
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *fileBackend) load() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read storage file: %w", err)
	}

	items, err := decodeFileState(data)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.items = items
	b.lastWritten = sha256.Sum256(data)
	b.mu.Unlock()

	return nil
}

func decodeFileState(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	var st filePersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}
	if st.Items == nil {
		st.Items = make(map[string]string)
	}
	return st.Items, nil
}

// persist writes the current items atomically. Caller holds b.mu.
func (b *fileBackend) persist() error {
	dir := filepath.Dir(b.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	payload, err := json.MarshalIndent(filePersistedState{Version: fileStateVersion, Items: b.items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write storage file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close storage file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod storage file: %w", err)
	}
	if err = os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace storage file: %w", err)
	}

	b.lastWritten = sha256.Sum256(payload)
	return nil
}

func (b *fileBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.items[key]
	return v, ok, nil
}

func (b *fileBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, existed := b.items[key]
	b.items[key] = value
	if err := b.persist(); err != nil {
		if existed {
			b.items[key] = prev
		} else {
			delete(b.items, key)
		}
		return err
	}
	return nil
}

func (b *fileBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, existed := b.items[key]
	if !existed {
		return nil
	}
	delete(b.items, key)
	if err := b.persist(); err != nil {
		b.items[key] = prev
		return err
	}
	return nil
}

func (b *fileBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return sortedKeys(b.items, prefix), nil
}

func (b *fileBackend) RemovePrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := make(map[string]string)
	for _, k := range sortedKeys(b.items, prefix) {
		removed[k] = b.items[k]
		delete(b.items, k)
	}
	if len(removed) == 0 {
		return nil
	}
	if err := b.persist(); err != nil {
		for k, v := range removed {
			b.items[k] = v
		}
		return err
	}
	return nil
}

func (b *fileBackend) Close() error {
	return nil
}

// Watch reloads the in-memory copy whenever another process replaces the
// file and then calls onChange. Writes made by this backend are recognised
// by content hash and ignored. The directory is watched rather than the file
// because writers replace the file by rename.
func (b *fileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		watcher.Close()
		return fmt.Errorf("create storage dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch storage dir: %w", err)
	}

	target := filepath.Clean(b.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if b.reloadIfForeign() {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Err(err).Str("func", "fileBackend.Watch").Msg("file watcher error")
			}
		}
	}()

	return nil
}

func (b *fileBackend) reloadIfForeign() bool {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Err(err).Str("func", "fileBackend.reloadIfForeign").Msg("error reading storage file")
		}
		return false
	}

	sum := sha256.Sum256(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	if sum == b.lastWritten {
		return false
	}

	items, err := decodeFileState(data)
	if err != nil {
		// partial write by another process; the next event carries the rest
		b.logger.Debug().Err(err).Str("func", "fileBackend.reloadIfForeign").Msg("skipping unreadable storage file")
		return false
	}

	b.items = items
	b.lastWritten = sum
	return true
}
