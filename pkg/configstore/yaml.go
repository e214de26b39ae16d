package configstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"
)

// YAMLStore is a ConfigStore backed by a single flat YAML file of
// property: value pairs, reloaded from disk on every Reload call. It is
// the configuration backend for single-node and test deployments; cluster
// deployments use ZKStore instead.
type YAMLStore struct {
	path string

	mu sync.RWMutex
	flatStore
}

// NewYAMLStore loads path immediately; a missing file is treated as an
// empty property set rather than an error, matching the rest of this
// module's "absent means use documented default" convention.
func NewYAMLStore(path string) (*YAMLStore, error) {
	s := &YAMLStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file, replacing the in-memory snapshot
// atomically under the store's lock.
func (s *YAMLStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.flatStore = flatStore{props: map[string]string{}}
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("configstore: read %s: %w", s.path, err)
	}

	var props map[string]string
	if err := yaml.Unmarshal(data, &props); err != nil {
		return fmt.Errorf("configstore: parse %s: %w", s.path, err)
	}
	if props == nil {
		props = map[string]string{}
	}

	s.mu.Lock()
	s.flatStore = flatStore{props: props}
	s.mu.Unlock()
	return nil
}

func (s *YAMLStore) GetAllPropertiesWithPrefix(prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAllWithPrefix(prefix), nil
}

func (s *YAMLStore) IsPropertySet(prop string, _ bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isPropertySet(prop)
}

func (s *YAMLStore) GetTimeInMillis(prop string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTimeInMillis(prop)
}

func (s *YAMLStore) GetProperty(prop string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProperty(prop)
}
