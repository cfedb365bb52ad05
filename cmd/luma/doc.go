// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Luma is the operator CLI for the identity trust gate. It runs gate
// decisions against request files (check), mints and verifies
// delegation grants (grant), manages a principal's familiars
// (familiar), inspects stored budgets (budget) and computes proof
// references (proof).
package main
