// Package objectstore defines the versioned blob capability consumed by
// the Test-Case Store (§4.9): put/get/head/delete over byte blobs keyed
// by string.
package objectstore

import (
	"context"
	"sync"
	"time"

	"github.com/algojudge/corejudge/errs"
)

// ObjectMeta describes a stored blob without transferring its body.
type ObjectMeta struct {
	Key       string
	Size      int64
	Version   string
	UpdatedAt time.Time
}

// Store is the object-store capability.
type Store interface {
	Put(ctx context.Context, key string, body []byte) (ObjectMeta, error)
	Get(ctx context.Context, key string) ([]byte, ObjectMeta, error)
	Head(ctx context.Context, key string) (ObjectMeta, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// MemoryStore is an in-memory object store for tests and for the memory
// task-store path exercised without a live object store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	version int
}

type memObject struct {
	body    []byte
	version string
	updated time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Put(ctx context.Context, key string, body []byte) (ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	cp := make([]byte, len(body))
	copy(cp, body)
	obj := memObject{body: cp, version: versionString(m.version), updated: time.Now().UTC()}
	m.objects[key] = obj
	return ObjectMeta{Key: key, Size: int64(len(cp)), Version: obj.version, UpdatedAt: obj.updated}, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ObjectMeta{}, errs.New(errs.KindNotFound, "object not found: "+key)
	}
	cp := make([]byte, len(obj.body))
	copy(cp, obj.body)
	return cp, ObjectMeta{Key: key, Size: int64(len(cp)), Version: obj.version, UpdatedAt: obj.updated}, nil
}

func (m *MemoryStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return ObjectMeta{}, errs.New(errs.KindNotFound, "object not found: "+key)
	}
	return ObjectMeta{Key: key, Size: int64(len(obj.body)), Version: obj.version, UpdatedAt: obj.updated}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func versionString(n int) string {
	const alphabet = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var out []byte
	for n > 0 {
		out = append([]byte{alphabet[n%16]}, out...)
		n /= 16
	}
	return string(out)
}
