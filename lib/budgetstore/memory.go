// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"context"
	"sync"

	"github.com/vhc-foundation/luma/lib/budget"
)

// Memory is an in-process Store. It is the default backend and the
// one tests use.
type Memory struct {
	mu      sync.Mutex
	budgets map[string]*budget.NullifierBudget
	locks   map[string]*sync.Mutex
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		budgets: make(map[string]*budget.NullifierBudget),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (m *Memory) lockFor(nullifier string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[nullifier]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[nullifier] = lock
	}
	return lock
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, nullifier string) (*budget.NullifierBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.budgets[nullifier]
	if !ok {
		return nil, ErrNotFound
	}
	return stored, nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, nullifier string, fn UpdateFunc) (*budget.NullifierBudget, error) {
	lock := m.lockFor(nullifier)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	current := m.budgets[nullifier]
	m.mu.Unlock()

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, errNilBudget
	}

	m.mu.Lock()
	m.budgets[nullifier] = next
	m.mu.Unlock()
	return next, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Len returns the number of stored budgets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.budgets)
}
