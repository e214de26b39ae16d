// Package configstore provides ConfigStore implementations — backed by a
// YAML file and by ZooKeeper — consumed by package compaction through its
// narrow ConfigStore boundary. Neither implementation knows anything about
// compaction semantics; they only serve flat property key/value pairs.
package configstore

import (
	"fmt"
	"strings"
	"time"
)

// flatStore is the shared lookup logic both backends build on: each keeps
// its own snapshot of properties as a plain map and answers the
// compaction.ConfigStore boundary methods from it.
type flatStore struct {
	props map[string]string
}

func (s *flatStore) getAllWithPrefix(prefix string) map[string]string {
	out := map[string]string{}
	for k, v := range s.props {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// isPropertySet reports whether prop has an explicit value in this
// snapshot. These backends carry no documented-default table of their
// own, so includeDefaults does not change the answer: a property is
// either present in the flat map or it is not.
func (s *flatStore) isPropertySet(prop string) (bool, error) {
	_, ok := s.props[prop]
	return ok, nil
}

func (s *flatStore) getProperty(prop string) (string, bool, error) {
	v, ok := s.props[prop]
	return v, ok, nil
}

func (s *flatStore) getTimeInMillis(prop string) (int64, error) {
	raw, ok := s.props[prop]
	if !ok {
		return 0, fmt.Errorf("configstore: property %q not set", prop)
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("configstore: parse %s=%q as duration: %w", prop, raw, err)
	}
	return d.Milliseconds(), nil
}
