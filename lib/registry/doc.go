// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds one principal's familiars, the grants issued
// to them, and the grants' revocations, and persists that state per
// principal.
//
// A [Registry] is explicit, caller-owned state: there is no package
// level instance. [Registry.SetActivePrincipal] hydrates the state
// from a [Persister] once per principal; repeated calls for the same
// principal are no-ops until [Registry.Reset] starts a new
// generation. Hydration is lenient. Familiars and grants that fail
// validation, and grants belonging to another principal, are dropped
// with a warning rather than failing the load.
//
// Every mutation writes the whole state back through the Persister
// before it becomes visible. A failed write leaves the in-memory
// state unchanged.
//
// Grants are issued through [delegation.CreateGrant] and additionally
// limited by the familiar's capability preset: a familiar whose preset
// is tier T can only hold scopes of tier T or lower.
package registry
