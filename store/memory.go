// Package store provides cart snapshot persisters.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// CartKey is the namespaced identifier every persister stores the cart under.
const CartKey = "amal:cart-storage"

// MemoryStore keeps the encoded snapshot in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blob  []byte
	saves int
}

// NewMemoryStore constructs an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// compile-time assertion that MemoryStore implements domain.CartPersister
var _ domain.CartPersister = (*MemoryStore)(nil)

func (s *MemoryStore) Load(ctx context.Context) (domain.CartSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.CartSnapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeSnapshot(s.blob)
}

func (s *MemoryStore) Save(ctx context.Context, snapshot domain.CartSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = b
	s.saves++
	return nil
}

// Saves reports how many snapshots have been written.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Raw returns the stored blob.
func (s *MemoryStore) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.blob...)
}

// SetRaw replaces the stored blob, as if written by another process.
func (s *MemoryStore) SetRaw(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append([]byte(nil), b...)
}

func decodeSnapshot(b []byte) (domain.CartSnapshot, error) {
	var snap domain.CartSnapshot
	if len(b) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return snap, nil
}
