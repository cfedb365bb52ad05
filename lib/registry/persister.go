// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"sync"
)

// KeyPrefix prefixes every persisted state key.
const KeyPrefix = "luma_delegation_v1:"

// ErrNoState is returned by LoadState when nothing is stored for the
// principal.
var ErrNoState = errors.New("registry: no stored state")

// StorageKey returns the persistence key for principal.
func StorageKey(principal string) string {
	return KeyPrefix + principal
}

// Persister stores one opaque state blob per principal.
type Persister interface {
	LoadState(ctx context.Context, principal string) ([]byte, error)
	SaveState(ctx context.Context, principal string, data []byte) error
}

// MemoryPersister is an in-process Persister.
type MemoryPersister struct {
	mu     sync.Mutex
	states map[string][]byte
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{states: make(map[string][]byte)}
}

// LoadState implements Persister.
func (m *MemoryPersister) LoadState(_ context.Context, principal string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.states[StorageKey(principal)]
	if !ok {
		return nil, ErrNoState
	}
	return append([]byte(nil), data...), nil
}

// SaveState implements Persister.
func (m *MemoryPersister) SaveState(_ context.Context, principal string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[StorageKey(principal)] = append([]byte(nil), data...)
	return nil
}

// Put stores raw bytes for principal, bypassing encoding. Tests use
// it to plant malformed state.
func (m *MemoryPersister) Put(principal string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[StorageKey(principal)] = append([]byte(nil), data...)
}
