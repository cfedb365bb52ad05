// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the module's single CBOR configuration.
//
// JSON is used at the edges (request files, CLI output, the persisted
// session shape handed over by the issuing authority). CBOR is used
// wherever bytes must be stable:
//
//   - signed payloads: grants and on-behalf-of assertions are signed
//     over their deterministic CBOR encoding, so a verifier that
//     re-encodes the same fields gets the same bytes;
//   - stored state: budgets in the sqlite and redis stores, and the
//     delegation registry's per-principal snapshot.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2).
// Domain types carry json tags only; fxamacker/cbor falls back to them
// so one tag controls naming in both formats.
package codec
