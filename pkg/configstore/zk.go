package configstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZKStore is a ConfigStore backed by ZooKeeper: every property is one
// child znode of rootPath, named after the property, holding its value as
// node data. Reads are served from an in-memory snapshot so the compaction
// manager's reads never block on a round trip. A background watch on the
// child list reloads the snapshot when properties are added or removed; a
// value changed on an existing znode by another client is not seen until
// the next reload.
type ZKStore struct {
	conn     *zk.Conn
	rootPath string

	mu sync.RWMutex
	flatStore
}

// NewZKStore connects to servers, loads the current property set under
// rootPath, and starts the watch loop. Cancel ctx to stop the watch; the
// connection itself is closed by Close.
func NewZKStore(ctx context.Context, servers []string, rootPath string) (*ZKStore, error) {
	conn, _, err := zk.Connect(servers, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("configstore: zk connect: %w", err)
	}
	s := &ZKStore{conn: conn, rootPath: rootPath}

	if err := s.ensureRoot(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.reload(); err != nil {
		conn.Close()
		return nil, err
	}

	go s.watch(ctx)
	return s, nil
}

func (s *ZKStore) ensureRoot() error {
	exists, _, err := s.conn.Exists(s.rootPath)
	if err != nil {
		return fmt.Errorf("configstore: check %s: %w", s.rootPath, err)
	}
	if !exists {
		_, err = s.conn.Create(s.rootPath, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("configstore: create %s: %w", s.rootPath, err)
		}
	}
	return nil
}

func (s *ZKStore) reload() error {
	names, _, err := s.conn.Children(s.rootPath)
	if err != nil {
		return fmt.Errorf("configstore: children %s: %w", s.rootPath, err)
	}

	props := make(map[string]string, len(names))
	for _, name := range names {
		data, _, err := s.conn.Get(s.rootPath + "/" + name)
		if err != nil {
			return fmt.Errorf("configstore: get %s/%s: %w", s.rootPath, name, err)
		}
		props[name] = string(data)
	}

	s.mu.Lock()
	s.flatStore = flatStore{props: props}
	s.mu.Unlock()
	return nil
}

// watch re-subscribes to child-list changes and reloads on every event
// until ctx is cancelled, the same pattern pkg/cluster's ZKMembership uses
// for ring membership.
func (s *ZKStore) watch(ctx context.Context) {
	for {
		_, _, ch, err := s.conn.ChildrenW(s.rootPath)
		if err != nil {
			select {
			case <-time.After(2 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ch:
			_ = s.reload()
		case <-ctx.Done():
			return
		}
	}
}

// SetProperty writes a property's value, creating its znode if absent.
// Intended for operator tooling and tests, not the compaction package
// itself, which only ever reads through ConfigStore.
func (s *ZKStore) SetProperty(prop, value string) error {
	path := s.rootPath + "/" + prop
	exists, _, err := s.conn.Exists(path)
	if err != nil {
		return fmt.Errorf("configstore: check %s: %w", path, err)
	}
	if !exists {
		_, err = s.conn.Create(path, []byte(value), 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("configstore: create %s: %w", path, err)
		}
	}
	_, err = s.conn.Set(path, []byte(value), -1)
	if err != nil {
		return fmt.Errorf("configstore: set %s: %w", path, err)
	}
	return s.reload()
}

func (s *ZKStore) Close() error {
	s.conn.Close()
	return nil
}

func (s *ZKStore) GetAllPropertiesWithPrefix(prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAllWithPrefix(prefix), nil
}

func (s *ZKStore) IsPropertySet(prop string, _ bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isPropertySet(prop)
}

func (s *ZKStore) GetTimeInMillis(prop string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTimeInMillis(prop)
}

func (s *ZKStore) GetProperty(prop string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProperty(prop)
}
