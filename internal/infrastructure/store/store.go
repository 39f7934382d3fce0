package store

import (
	"context"
	"errors"
	"strings"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the key-value capability the cart persists its local state in.
// Get returns ErrKeyNotFound for a missing key; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// namespaced scopes every key of an underlying store under a prefix.
type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced returns a view of s where every key is stored as "ns/key".
func Namespaced(s Store, ns string) Store {
	return &namespaced{inner: s, prefix: strings.TrimSuffix(ns, "/") + "/"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}
