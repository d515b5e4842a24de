// internal/cache/cache.go

// Package cache persists winning locator strategies across test runs. It
// layers an in-memory map over a flat JSON file on disk.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sk3lla/mend/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manager is the two-tier strategy cache. The in-memory map fronts a JSON
// file that is loaded lazily, once, on the first read that misses memory.
//
// The disk file is shared external state. Writes replace the whole file
// atomically but take no lock against other processes; concurrent writers
// can lose each other's updates. A lost entry costs one extra model
// round-trip on the next run, so this is accepted.
type Manager struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]schemas.CacheEntry
	loaded  bool

	loadGroup singleflight.Group
}

// NewManager creates a cache over the given file path. The file does not
// need to exist yet.
func NewManager(path string, logger *zap.Logger) *Manager {
	return &Manager{
		path:    path,
		logger:  logger.Named("cache"),
		entries: make(map[string]schemas.CacheEntry),
	}
}

// Get looks a key up in memory, falling back to the lazily-loaded disk map.
func (m *Manager) Get(key string) (*schemas.CacheEntry, bool) {
	m.mu.Lock()
	if entry, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return &entry, true
	}
	loaded := m.loaded
	m.mu.Unlock()

	if !loaded {
		m.loadOnce()
		m.mu.Lock()
		defer m.mu.Unlock()
		if entry, ok := m.entries[key]; ok {
			return &entry, true
		}
	}
	return nil, false
}

// Put stores the entry in memory and rewrites the disk file with the full
// map. The write is atomic (temp file + rename) so readers never observe a
// torn file.
func (m *Manager) Put(key string, entry schemas.CacheEntry) error {
	// Merge with anything already on disk before the first write.
	m.loadOnce()

	m.mu.Lock()
	m.entries[key] = entry
	snapshot := make(map[string]schemas.CacheEntry, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}
	m.mu.Unlock()

	return m.persist(snapshot)
}

// Entries returns a copy of the full cache map, disk included.
func (m *Manager) Entries() map[string]schemas.CacheEntry {
	m.loadOnce()

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]schemas.CacheEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Clear drops the in-memory map and deletes the disk file.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.entries = make(map[string]schemas.CacheEntry)
	m.loaded = true
	m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// loadOnce reads the disk file into memory exactly once per process.
// Concurrent callers share a single read via singleflight.
func (m *Manager) loadOnce() {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.loadGroup.Do("load", func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.loaded {
			return nil, nil
		}
		m.loaded = true

		data, err := os.ReadFile(m.path)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn("Failed to read cache file, starting empty",
					zap.String("path", m.path), zap.Error(err))
			}
			return nil, nil
		}

		disk := make(map[string]schemas.CacheEntry)
		if err := json.Unmarshal(data, &disk); err != nil {
			m.logger.Warn("Cache file is corrupt, starting empty",
				zap.String("path", m.path), zap.Error(err))
			return nil, nil
		}

		// Memory wins over disk for keys written before the lazy load.
		for k, v := range disk {
			if _, ok := m.entries[k]; !ok {
				m.entries[k] = v
			}
		}
		return nil, nil
	})
}

// persist writes the snapshot to a temp file and renames it into place.
func (m *Manager) persist(snapshot map[string]schemas.CacheEntry) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
