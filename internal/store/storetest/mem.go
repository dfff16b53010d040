package storetest

import (
	"context"
	"sync"

	"github.com/skhoolar/skhoolar/internal/store"
)

// MemKeyStore is an in-memory store.KeyStore for tests.
// When Err is set every call fails with it.
type MemKeyStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	Err     error
	Creates int
}

func NewMemKeyStore() *MemKeyStore {
	return &MemKeyStore{entries: make(map[string][]byte)}
}

func (m *MemKeyStore) GetKey(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	desc, ok := m.entries[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return desc, nil
}

func (m *MemKeyStore) CreateKey(_ context.Context, name string, desc []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Creates++
	if existing, ok := m.entries[name]; ok {
		return existing, nil
	}
	m.entries[name] = desc
	return desc, nil
}

// Set overwrites an entry directly, bypassing insert-if-absent.
func (m *MemKeyStore) Set(name string, desc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = desc
}

func (m *MemKeyStore) Close() error { return nil }

// MemBlobStore is an in-memory store.BlobStore for tests.
// When Err is set every call fails with it.
type MemBlobStore struct {
	mu      sync.Mutex
	entries map[string]string
	Err     error
}

func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{entries: make(map[string]string)}
}

func (m *MemBlobStore) GetBlob(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	blob, ok := m.entries[name]
	if !ok {
		return "", store.ErrNotFound
	}
	return blob, nil
}

func (m *MemBlobStore) PutBlob(_ context.Context, name, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.entries[name] = blob
	return nil
}

func (m *MemBlobStore) DeleteBlob(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.entries, name)
	return nil
}

func (m *MemBlobStore) HasBlob(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.entries[name]
	return ok, nil
}

func (m *MemBlobStore) Close() error { return nil }
