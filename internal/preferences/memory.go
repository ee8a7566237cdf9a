// Package preferences provides domain.PreferenceStore implementations: an
// in-memory map for request-scoped and test use, and a JSON file on an
// afero filesystem for the CLI.
package preferences

import (
	"maps"
	"sync"

	"github.com/nfrund/signin/internal/domain"
)

// Keys lists every key the sign-in flow reads or writes.
var Keys = []string{domain.PrefLastAuthTab, domain.PrefReferralCode}

// Memory is a concurrency-safe in-memory PreferenceStore.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns a store seeded with a copy of initial.
func NewMemory(initial map[string]string) *Memory {
	m := &Memory{values: make(map[string]string, len(initial))}
	maps.Copy(m.values, initial)
	return m
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Values returns a copy of everything stored.
func (m *Memory) Values() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

// Copy writes every key of keys present in src into dst. Last write wins.
func Copy(dst, src domain.PreferenceStore, keys ...string) error {
	if len(keys) == 0 {
		keys = Keys
	}
	for _, k := range keys {
		v, ok := src.Get(k)
		if !ok {
			continue
		}
		if err := dst.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
