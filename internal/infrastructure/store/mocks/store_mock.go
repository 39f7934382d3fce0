package mocks

import (
	"context"
	"sync"

	"github.com/example/food-cart/internal/infrastructure/store"
)

// MockStore is a mock implementation of store.Store for testing
type MockStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// For tracking calls in tests
	SetCalls    []SetCall
	DeleteCalls []string

	// Injected failures; KeyErr applies to one key only.
	GetErr    error
	SetErr    error
	DeleteErr error
	KeyErr    map[string]error
}

// SetCall records parameters passed to Set
type SetCall struct {
	Key   string
	Value []byte
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{
		data:        make(map[string][]byte),
		SetCalls:    make([]SetCall, 0),
		DeleteCalls: make([]string, 0),
		KeyErr:      make(map[string]error),
	}
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.KeyErr[key]; err != nil {
		return nil, err
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	value, ok := m.data[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: append([]byte(nil), value...)})
	if err := m.KeyErr[key]; err != nil {
		return err
	}
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data, key)
	return nil
}

// SetData sets a value directly for testing
func (m *MockStore) SetData(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

// Data returns the raw stored value for testing
func (m *MockStore) Data(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

// Has reports whether a key is present
func (m *MockStore) Has(key string) bool {
	_, ok := m.Data(key)
	return ok
}
