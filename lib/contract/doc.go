// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package contract defines the two error classes used for caller
// contract violations across the policy engine.
//
// Policy outcomes (a proof that does not match, a grant that has
// expired, a budget that is exhausted) are never errors. They are
// returned as result values so callers can probe speculatively.
// Errors are reserved for inputs the caller should never have passed:
//
//   - [ErrInvalid] covers malformed input: empty identifiers, dates
//     that are not YYYY-MM-DD, records that fail schema validation.
//   - [ErrRange] covers numeric input outside its domain: negative
//     timestamps, non-positive amounts, grant lifetimes beyond the
//     configured maximum.
//
// Errors built with [Invalidf] and [Rangef] print exactly the
// formatted message (no package prefix) because the message text is
// part of the stable contract that callers and tests match on. Use
// errors.Is to classify them.
package contract
