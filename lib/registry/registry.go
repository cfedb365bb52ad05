// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/contract"
	"github.com/vhc-foundation/luma/lib/delegation"
)

// ErrNoPrincipal is returned by mutations when no principal is active.
// Registry error texts match the delegation store's user-visible
// messages exactly, capitalization included.
var ErrNoPrincipal = errors.New("No active principal set")

// Config configures a Registry.
type Config struct {
	// Persister stores state between hydrations. Default
	// NewMemoryPersister().
	Persister Persister

	Clock  clock.Clock
	Logger *slog.Logger

	// IDs generates familiar IDs when the caller supplies none.
	// Default "familiar-" followed by a random UUID.
	IDs func() string

	// MaxGrantLifetimeMs bounds issued grants. Zero means
	// delegation.DefaultMaxGrantLifetime.
	MaxGrantLifetimeMs int64
}

// Registry is one process's view of the active principal's
// delegation state. It is safe for concurrent use.
type Registry struct {
	persister   Persister
	clock       clock.Clock
	logger      *slog.Logger
	ids         func() string
	maxLifetime int64

	mu    sync.Mutex
	state State

	// hydrated is true once state reflects the persisted state of
	// state.Principal for generation hydratedGeneration.
	hydrated           bool
	generation         uint64
	hydratedGeneration uint64
}

// New returns a Registry with no active principal.
func New(cfg Config) *Registry {
	registry := &Registry{
		persister:   cfg.Persister,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		ids:         cfg.IDs,
		maxLifetime: cfg.MaxGrantLifetimeMs,
		state:       emptyState(""),
	}
	if registry.persister == nil {
		registry.persister = NewMemoryPersister()
	}
	if registry.clock == nil {
		registry.clock = clock.Real()
	}
	if registry.logger == nil {
		registry.logger = slog.New(slog.DiscardHandler)
	}
	if registry.ids == nil {
		registry.ids = func() string { return "familiar-" + uuid.NewString() }
	}
	return registry
}

// ActivePrincipal returns the active principal, or "" when none is
// set.
func (r *Registry) ActivePrincipal() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Principal
}

// SetActivePrincipal switches the registry to principal, hydrating
// its persisted state. It does nothing when principal is already
// hydrated in the current generation. An empty principal clears the
// registry.
func (r *Registry) SetActivePrincipal(ctx context.Context, principal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hydrated && r.hydratedGeneration == r.generation && r.state.Principal == principal {
		return nil
	}
	return r.hydrateLocked(ctx, principal)
}

// Reset discards in-memory state and reloads the active principal's
// persisted state.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.hydrateLocked(ctx, r.state.Principal)
}

func (r *Registry) hydrateLocked(ctx context.Context, principal string) error {
	if principal == "" {
		r.state = emptyState("")
		r.hydrated = true
		r.hydratedGeneration = r.generation
		return nil
	}

	data, err := r.persister.LoadState(ctx, principal)
	switch {
	case errors.Is(err, ErrNoState):
		r.state = emptyState(principal)
	case err != nil:
		return fmt.Errorf("registry: hydrating %s: %w", principal, err)
	default:
		r.state = decodeState(principal, data, r.logger)
	}
	r.hydrated = true
	r.hydratedGeneration = r.generation
	r.logger.Debug("delegation state hydrated",
		"principal", principal,
		"familiars", len(r.state.Familiars),
		"grants", len(r.state.Grants),
	)
	return nil
}

// commitLocked persists next and makes it the current state.
func (r *Registry) commitLocked(ctx context.Context, next State) error {
	data, err := encodeState(next)
	if err != nil {
		return fmt.Errorf("registry: encoding state: %w", err)
	}
	if err := r.persister.SaveState(ctx, next.Principal, data); err != nil {
		return fmt.Errorf("registry: persisting state: %w", err)
	}
	r.state = next
	return nil
}

func (r *Registry) requirePrincipalLocked() error {
	if r.state.Principal == "" {
		return ErrNoPrincipal
	}
	return nil
}

// RegisterFamiliar adds a familiar for the active principal. The
// label is trimmed before validation.
func (r *Registry) RegisterFamiliar(ctx context.Context, input FamiliarInput) (Familiar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requirePrincipalLocked(); err != nil {
		return Familiar{}, err
	}

	familiar := Familiar{
		ID:               input.ID,
		Label:            strings.TrimSpace(input.Label),
		CapabilityPreset: input.CapabilityPreset,
	}
	if familiar.ID == "" {
		familiar.ID = r.ids()
	}
	if input.CreatedAt != nil {
		familiar.CreatedAt = *input.CreatedAt
	} else {
		familiar.CreatedAt = clock.UnixMilli(r.clock)
	}
	if err := familiar.Validate(); err != nil {
		return Familiar{}, err
	}
	if _, exists := r.state.Familiars[familiar.ID]; exists {
		return Familiar{}, fmt.Errorf("Familiar %q already exists", familiar.ID)
	}

	next := r.state.clone()
	next.Familiars[familiar.ID] = familiar
	if err := r.commitLocked(ctx, next); err != nil {
		return Familiar{}, err
	}
	r.logger.Info("familiar registered",
		"principal", next.Principal,
		"familiar", familiar.ID,
		"preset", familiar.CapabilityPreset,
	)
	return familiar, nil
}

// RevokeFamiliar revokes a familiar as of the clock's now.
func (r *Registry) RevokeFamiliar(ctx context.Context, familiarID string) error {
	return r.RevokeFamiliarAt(ctx, familiarID, clock.UnixMilli(r.clock))
}

// RevokeFamiliarAt revokes a familiar as of revokedAt, along with
// every grant issued to it. An earlier revocation is kept. Revoking an
// unknown familiar does nothing.
func (r *Registry) RevokeFamiliarAt(ctx context.Context, familiarID string, revokedAt int64) error {
	if familiarID == "" {
		return contract.Invalidf("familiarId must be a non-empty string")
	}
	if !contract.ValidTimestamp(revokedAt) {
		return contract.Rangef("revokedAt must be a non-negative integer timestamp, got: %d", revokedAt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requirePrincipalLocked(); err != nil {
		return err
	}
	familiar, ok := r.state.Familiars[familiarID]
	if !ok {
		return nil
	}

	effective := revokedAt
	if familiar.RevokedAt != nil {
		effective = min(effective, *familiar.RevokedAt)
	}
	familiar.RevokedAt = &effective

	next := r.state.clone()
	next.Familiars[familiarID] = familiar
	for _, grantID := range slices.Sorted(maps.Keys(next.Grants)) {
		if next.Grants[grantID].FamiliarID != familiarID {
			continue
		}
		revocations, err := delegation.RevokeGrant(grantID, effective, next.Revocations)
		if err != nil {
			return err
		}
		next.Revocations = revocations
	}
	if err := r.commitLocked(ctx, next); err != nil {
		return err
	}
	r.logger.Info("familiar revoked",
		"principal", next.Principal,
		"familiar", familiarID,
		"revoked_at", effective,
	)
	return nil
}

// IssueGrant normalizes g with delegation.CreateGrant and records it.
// opts.Now defaults to the clock's now and opts.MaxLifetimeMs to the
// registry's configured maximum.
func (r *Registry) IssueGrant(ctx context.Context, g delegation.Grant, opts delegation.CreateOptions) (delegation.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requirePrincipalLocked(); err != nil {
		return delegation.Grant{}, err
	}

	if opts.Now == nil {
		now := clock.UnixMilli(r.clock)
		opts.Now = &now
	}
	if opts.MaxLifetimeMs == 0 {
		opts.MaxLifetimeMs = r.maxLifetime
	}
	grant, err := delegation.CreateGrant(g, opts)
	if err != nil {
		return delegation.Grant{}, err
	}

	if grant.PrincipalNullifier != r.state.Principal {
		return delegation.Grant{}, errors.New("Grant principal does not match active principal")
	}
	if _, exists := r.state.Grants[grant.GrantID]; exists {
		return delegation.Grant{}, fmt.Errorf("Grant %q already exists", grant.GrantID)
	}
	familiar, ok := r.state.Familiars[grant.FamiliarID]
	if !ok {
		return delegation.Grant{}, fmt.Errorf("Familiar %q not found", grant.FamiliarID)
	}
	if familiar.RevokedBy(grant.IssuedAt) {
		return delegation.Grant{}, fmt.Errorf("Familiar %q is revoked", familiar.ID)
	}
	for _, scope := range grant.Scopes {
		if !familiar.CapabilityPreset.Allows(scope) {
			return delegation.Grant{}, fmt.Errorf("Scope %q exceeds familiar tier %q", scope, familiar.CapabilityPreset)
		}
	}

	next := r.state.clone()
	next.Grants[grant.GrantID] = grant
	if err := r.commitLocked(ctx, next); err != nil {
		return delegation.Grant{}, err
	}
	r.logger.Info("grant issued",
		"principal", next.Principal,
		"grant", grant.GrantID,
		"familiar", grant.FamiliarID,
		"scopes", grant.Scopes,
		"expires_at", grant.ExpiresAt,
	)
	return grant, nil
}

// RevokeGrant revokes a grant as of the clock's now.
func (r *Registry) RevokeGrant(ctx context.Context, grantID string) error {
	return r.RevokeGrantAt(ctx, grantID, clock.UnixMilli(r.clock))
}

// RevokeGrantAt revokes grantID as of revokedAt. An earlier
// revocation is kept. The grant need not be known to the registry.
func (r *Registry) RevokeGrantAt(ctx context.Context, grantID string, revokedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requirePrincipalLocked(); err != nil {
		return err
	}
	revocations, err := delegation.RevokeGrant(grantID, revokedAt, r.state.Revocations)
	if err != nil {
		return err
	}
	next := r.state.clone()
	next.Revocations = revocations
	return r.commitLocked(ctx, next)
}

// CanFamiliarPerform decides whether grantID authorizes scope at now.
// The registry's own revocations replace opts.Revocations.
func (r *Registry) CanFamiliarPerform(grantID string, scope delegation.Scope, now int64, opts delegation.CheckOptions) delegation.Result {
	if grantID == "" {
		return delegation.Result{Reason: "grantId must be a non-empty string"}
	}

	r.mu.Lock()
	grant, grantFound := r.state.Grants[grantID]
	familiar, familiarFound := r.state.Familiars[grant.FamiliarID]
	principal := r.state.Principal
	revocations := r.state.Revocations.Clone()
	r.mu.Unlock()

	if !grantFound {
		return delegation.Result{Reason: fmt.Sprintf("grant %q not found", grantID)}
	}
	if principal != "" && grant.PrincipalNullifier != principal {
		return delegation.Result{Reason: "grant principal does not match active principal"}
	}
	if !familiarFound {
		return delegation.Result{Reason: fmt.Sprintf("familiar %q not found", grant.FamiliarID)}
	}

	actionTime := now
	if opts.ActionTime != nil {
		actionTime = *opts.ActionTime
	}
	if contract.ValidTimestamp(actionTime) && familiar.RevokedBy(actionTime) {
		return delegation.Result{Reason: "familiar is revoked"}
	}

	opts.Revocations = revocations
	return delegation.CanPerformDelegated(grant, scope, now, opts)
}

// GrantStatus returns grantID's status at the clock's now.
func (r *Registry) GrantStatus(grantID string) Status {
	return r.GrantStatusAt(grantID, clock.UnixMilli(r.clock))
}

// GrantStatusAt returns grantID's status at now. Revocation of the
// grant or its familiar takes precedence over the validity window.
func (r *Registry) GrantStatusAt(grantID string, now int64) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	grant, ok := r.state.Grants[grantID]
	if !ok {
		return StatusUnknown
	}
	if familiar, ok := r.state.Familiars[grant.FamiliarID]; ok && familiar.RevokedBy(now) {
		return StatusRevoked
	}
	if revokedAt, ok := r.state.Revocations[grantID]; ok && now >= revokedAt {
		return StatusRevoked
	}
	if now < grant.IssuedAt {
		return StatusPending
	}
	if now >= grant.ExpiresAt {
		return StatusExpired
	}
	return StatusActive
}

// Revocations returns a copy of the revocation map.
func (r *Registry) Revocations() delegation.Revocations {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Revocations.Clone()
}

// Familiars returns the registered familiars ordered by ID.
func (r *Registry) Familiars() []Familiar {
	r.mu.Lock()
	defer r.mu.Unlock()
	familiars := make([]Familiar, 0, len(r.state.Familiars))
	for _, id := range slices.Sorted(maps.Keys(r.state.Familiars)) {
		familiars = append(familiars, r.state.Familiars[id])
	}
	return familiars
}

// Grants returns the recorded grants ordered by ID.
func (r *Registry) Grants() []delegation.Grant {
	r.mu.Lock()
	defer r.mu.Unlock()
	grants := make([]delegation.Grant, 0, len(r.state.Grants))
	for _, id := range slices.Sorted(maps.Keys(r.state.Grants)) {
		grants = append(grants, r.state.Grants[id])
	}
	return grants
}

// Grant returns the grant with grantID.
func (r *Registry) Grant(grantID string) (delegation.Grant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.state.Grants[grantID]
	return grant, ok
}
