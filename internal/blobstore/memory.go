package blobstore

import (
	"context"
	"sync"
)

func init() {
	Register("memory", func(map[string]string) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore holds blobs in process memory. Used in tests and throwaway
// setups; contents vanish with the process.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	cid := ContentID(data)
	stored := make([]byte, len(data))
	copy(stored, data)
	s.mu.Lock()
	s.blobs[cid] = stored
	s.mu.Unlock()
	return cid, nil
}

func (s *MemoryStore) Get(_ context.Context, cid string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[cid]
	s.mu.RUnlock()
	if !ok {
		return nil, &StoreError{Op: "get", CID: cid, Err: ErrNotFound}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len reports how many distinct blobs are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
