// Package blobstore provides content-addressed blob storage: a blob is
// stored under the hex SHA-256 of its content, and that content identifier
// is the only handle callers ever hold.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("blob not found")

// StoreError wraps a storage-network failure with the operation and
// content identifier involved.
type StoreError struct {
	Op  string
	CID string
	Err error
}

func (e *StoreError) Error() string {
	if e.CID == "" {
		return fmt.Sprintf("blobstore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blobstore %s %s: %v", e.Op, e.CID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

/// Store is the storage-network interface: opaque put/get keyed by content
// identifier. Identical content always maps to the same identifier;
// changed content always yields a new one.
type Store interface {
	Put(ctx context.Context, data []byte) (cid string, err error)
	Get(ctx context.Context, cid string) ([]byte, error)
}

// ContentID returns the content identifier for a blob: hex SHA-256.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Factory builds a Store from implementation-specific config.
type Factory func(args map[string]string) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a store implementation available under a name.
func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds a Store by registered type name.
func New(storeType string, args map[string]string) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(storeType))
	if key == "" {
		return nil, fmt.Errorf("blob store type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported blob store type: %s", storeType)
	}
	return factory(args)
}
