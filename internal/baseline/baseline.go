package baseline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store looks up a known-good configuration value for a device. The
// second return reports whether the field exists; an error is reserved
// for lookup failures (for example a backing store gone away), not for
// missing fields.
type Store interface {
	Get(ctx context.Context, device, field string) (string, bool, error)
}

// StaticStore is an in-memory baseline keyed by device then field.
type StaticStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewStaticStore creates an empty baseline store.
func NewStaticStore() *StaticStore {
	return &StaticStore{values: make(map[string]map[string]string)}
}

// Set records one field for a device, replacing any existing value.
func (s *StaticStore) Set(device, field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[device] == nil {
		s.values[device] = make(map[string]string)
	}
	s.values[device][field] = value
}

// Get implements Store.
func (s *StaticStore) Get(_ context.Context, device, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[device][field]
	return v, ok, nil
}

// Devices returns the device names present in the store.
func (s *StaticStore) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for d := range s.values {
		out = append(out, d)
	}
	return out
}

// fileFormat is the on-disk layout: a devices map of field/value pairs.
type fileFormat struct {
	Devices map[string]map[string]string `yaml:"devices"`
}

// LoadFile reads a YAML baseline file into a StaticStore.
func LoadFile(path string) (*StaticStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse baseline file %s: %w", path, err)
	}

	store := NewStaticStore()
	for device, fields := range f.Devices {
		for field, value := range fields {
			store.Set(device, field, value)
		}
	}
	return store, nil
}
