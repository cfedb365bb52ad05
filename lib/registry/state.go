// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/vhc-foundation/luma/lib/codec"
	"github.com/vhc-foundation/luma/lib/delegation"
)

// State is one principal's delegation state.
type State struct {
	Principal   string
	Familiars   map[string]Familiar
	Grants      map[string]delegation.Grant
	Revocations delegation.Revocations
}

func emptyState(principal string) State {
	return State{
		Principal:   principal,
		Familiars:   make(map[string]Familiar),
		Grants:      make(map[string]delegation.Grant),
		Revocations: make(delegation.Revocations),
	}
}

// clone returns a copy whose maps can be modified independently.
func (s State) clone() State {
	return State{
		Principal:   s.Principal,
		Familiars:   maps.Clone(s.Familiars),
		Grants:      maps.Clone(s.Grants),
		Revocations: s.Revocations.Clone(),
	}
}

// stateRecord is the persisted form of a State.
type stateRecord struct {
	Familiars   []Familiar         `json:"familiars"`
	Grants      []delegation.Grant `json:"grants"`
	Revocations map[string]int64   `json:"revokedAtByGrantId"`
}

func encodeState(s State) ([]byte, error) {
	record := stateRecord{
		Familiars:   make([]Familiar, 0, len(s.Familiars)),
		Grants:      make([]delegation.Grant, 0, len(s.Grants)),
		Revocations: map[string]int64(s.Revocations),
	}
	for _, id := range slices.Sorted(maps.Keys(s.Familiars)) {
		record.Familiars = append(record.Familiars, s.Familiars[id])
	}
	for _, id := range slices.Sorted(maps.Keys(s.Grants)) {
		record.Grants = append(record.Grants, s.Grants[id])
	}
	if record.Revocations == nil {
		record.Revocations = map[string]int64{}
	}
	return codec.Marshal(record)
}

// decodeState rebuilds principal's state from data, keeping every
// entry that validates and dropping the rest. It never fails: data
// that cannot be decoded at all yields an empty state.
func decodeState(principal string, data []byte, logger *slog.Logger) State {
	state := emptyState(principal)

	var fields map[string]codec.RawMessage
	if err := codec.Unmarshal(data, &fields); err != nil {
		logger.Warn("stored delegation state is unreadable, starting empty",
			"principal", principal,
			"error", err,
		)
		return state
	}

	var familiars []codec.RawMessage
	if raw, ok := fields["familiars"]; ok {
		if err := codec.Unmarshal(raw, &familiars); err != nil {
			logger.Warn("stored familiars are not a list, ignoring", "principal", principal, "error", err)
		}
	}
	for _, raw := range familiars {
		var familiar Familiar
		if err := codec.Unmarshal(raw, &familiar); err != nil {
			logger.Warn("dropping undecodable familiar", "principal", principal, "error", err)
			continue
		}
		if err := familiar.Validate(); err != nil {
			logger.Warn("dropping invalid familiar", "principal", principal, "familiar", familiar.ID, "error", err)
			continue
		}
		state.Familiars[familiar.ID] = familiar
	}

	var grants []codec.RawMessage
	if raw, ok := fields["grants"]; ok {
		if err := codec.Unmarshal(raw, &grants); err != nil {
			logger.Warn("stored grants are not a list, ignoring", "principal", principal, "error", err)
		}
	}
	for _, raw := range grants {
		var grant delegation.Grant
		if err := codec.Unmarshal(raw, &grant); err != nil {
			logger.Warn("dropping undecodable grant", "principal", principal, "error", err)
			continue
		}
		if err := grant.Validate(); err != nil {
			logger.Warn("dropping invalid grant", "principal", principal, "grant", grant.GrantID, "error", err)
			continue
		}
		if grant.PrincipalNullifier != principal {
			logger.Warn("dropping grant for another principal",
				"principal", principal,
				"grant", grant.GrantID,
				"grant_principal", grant.PrincipalNullifier,
			)
			continue
		}
		state.Grants[grant.GrantID] = grant
	}

	var revocations map[string]codec.RawMessage
	if raw, ok := fields["revokedAtByGrantId"]; ok {
		if err := codec.Unmarshal(raw, &revocations); err != nil {
			logger.Warn("stored revocations are not a map, ignoring", "principal", principal, "error", err)
		}
	}
	for grantID, raw := range revocations {
		var revokedAt int64
		if grantID == "" || codec.Unmarshal(raw, &revokedAt) != nil || revokedAt < 0 {
			continue
		}
		state.Revocations[grantID] = revokedAt
	}

	return state
}
