// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/codec"
)

var (
	// ErrNotFound is returned by Load when no budget is stored for
	// the nullifier.
	ErrNotFound = errors.New("budgetstore: budget not found")

	// ErrCorrupt is returned by Load when the stored record cannot
	// be decoded.
	ErrCorrupt = errors.New("budgetstore: stored budget is corrupt")
)

// UpdateFunc computes the next budget from the current one. current
// is nil when nothing is stored. A record that cannot be decoded is
// presented as a zero NullifierBudget, which fails budget.Validate.
// Returning an error aborts the update and leaves the stored budget
// unchanged. Returning the same pointer it was given also leaves the
// store unchanged.
type UpdateFunc func(current *budget.NullifierBudget) (*budget.NullifierBudget, error)

// Store persists one budget per nullifier. Budgets returned by a
// Store must be treated as immutable.
type Store interface {
	// Load returns the stored budget, or ErrNotFound.
	Load(ctx context.Context, nullifier string) (*budget.NullifierBudget, error)

	// Update applies fn under the nullifier's single-writer guard
	// and returns the budget now stored.
	Update(ctx context.Context, nullifier string, fn UpdateFunc) (*budget.NullifierBudget, error)

	// Close releases the store's resources.
	Close() error
}

// errNilBudget is returned when an UpdateFunc returns (nil, nil).
var errNilBudget = errors.New("budgetstore: update returned a nil budget")

// decodeBudget decodes a stored CBOR record.
func decodeBudget(nullifier string, data []byte) (*budget.NullifierBudget, error) {
	var stored budget.NullifierBudget
	if err := codec.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, nullifier, err)
	}
	return &stored, nil
}

// currentForUpdate maps a read result onto what an UpdateFunc sees.
func currentForUpdate(stored *budget.NullifierBudget, err error) (*budget.NullifierBudget, error) {
	if errors.Is(err, ErrCorrupt) {
		return &budget.NullifierBudget{}, nil
	}
	return stored, err
}
