// Package board is the trustees' only communication channel: an
// append-only keyed store with atomic multi-key publication, fronted by a
// typed facade per artifact kind. The facade also carries the local-only
// pre-shuffle side channel, which never replicates.
package board

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrExists is returned when a put collides with a key already on the
// board. The board is append-only; a collision means another trustee (or a
// repeated cycle) got there first.
var ErrExists = errors.New("key already on the board")

// Store is the low-level keyed store underneath the board facade.
// Implementations serialize concurrent writers; PutAtomic publishes all
// entries or none.
type Store interface {
	// Sync refreshes the local view from the authoritative copy,
	// discarding anything unpushed.
	Sync() error

	// Keys lists every key present.
	Keys() ([]string, error)

	// Get returns the payload under key and whether it was present.
	Get(key string) ([]byte, bool, error)

	// PutAtomic publishes the entries as one commit. It fails with
	// ErrExists if any key is already present.
	PutAtomic(entries map[string][]byte) error
}

// MemStore is a map-backed store. Several trustees may share one instance;
// the mutex stands in for the remote's commit serialization.
type MemStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string][]byte)}
}

// Sync is a no-op: the map is the authoritative copy.
func (m *MemStore) Sync() error { return nil }

// Keys implements Store.
func (m *MemStore) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get implements Store.
func (m *MemStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// PutAtomic implements Store.
func (m *MemStore) PutAtomic(entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range entries {
		if _, ok := m.entries[k]; ok {
			return errors.Wrap(ErrExists, k)
		}
	}
	for k, v := range entries {
		data := make([]byte, len(v))
		copy(data, v)
		m.entries[k] = data
	}
	return nil
}

// Remove deletes a key. It exists for the administrative error and pause
// clearing, never for the trustee loop.
func (m *MemStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
