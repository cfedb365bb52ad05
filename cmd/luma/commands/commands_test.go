// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/constituency"
	"github.com/vhc-foundation/luma/lib/delegation"
	"github.com/vhc-foundation/luma/lib/gate"
	"github.com/vhc-foundation/luma/lib/session"
	"github.com/vhc-foundation/luma/lib/version"
)

const (
	testTime      int64 = 1_700_000_000_000
	testPrincipal       = "nullifier-human-1"
	testDistrict        = "district-alpha-hash"
)

var testAt = strconv.FormatInt(testTime, 10)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := Root(&stdout)
	root.SetHelpOutput(&stdout)
	err := root.Execute(args)
	return stdout.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	output, err := execute(t, args...)
	if err != nil {
		t.Fatalf("luma %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return output
}

func expectExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want exit code %d", err, code)
	}
	if exitErr.Code != code {
		t.Errorf("exit code = %d, want %d", exitErr.Code, code)
	}
}

// writeConfig writes a luma.yaml using SQLite storage under a fresh
// root, with extra appended to the delegation section.
func writeConfig(t *testing.T, delegationExtra string) string {
	t.Helper()
	root := t.TempDir()
	content := fmt.Sprintf(`environment: development
paths:
  root: %s
delegation:
  max_grant_lifetime: 24h
%s
budget:
  limits:
    - action: posts/day
      daily_limit: 2
  store:
    backend: sqlite
`, root, delegationExtra)
	path := filepath.Join(root, "luma.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeRequest(t *testing.T, request gate.Request) string {
	t.Helper()
	data, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	return writeFile(t, "request.json", data)
}

func testRequest(action gate.Action) gate.Request {
	return gate.Request{
		Action: action,
		Proof: &constituency.Proof{
			DistrictHash: testDistrict,
			Nullifier:    testPrincipal,
			MerkleRoot:   constituency.Root("merkle-root-valid-abc123"),
		},
		Session: session.Response{
			Token:            "session-token",
			TrustScore:       0.8,
			ScaledTrustScore: 8000,
			Nullifier:        testPrincipal,
			CreatedAt:        testTime - 1000,
			ExpiresAt:        testTime + session.DefaultTTL,
		},
		District: testDistrict,
	}
}

func TestVersion(t *testing.T) {
	output := mustExecute(t, "--version")
	if !strings.Contains(output, version.Short()) {
		t.Errorf("output = %q, want the version", output)
	}
}

func TestCheckConsumesAcrossInvocations(t *testing.T) {
	configPath := writeConfig(t, "")
	requestPath := writeFile(t, "post.jsonc", []byte(fmt.Sprintf(`{
	// A plain post, no delegation.
	"action": "post",
	"proof": {"district_hash": %q, "nullifier": %q, "merkle_root": "root"},
	"session": {
		"token": "session-token",
		"trustScore": 0.8,
		"scaledTrustScore": 8000,
		"nullifier": %q,
		"createdAt": %d,
		"expiresAt": %d,
	},
	"district": %q,
}`, testDistrict, testPrincipal, testPrincipal, testTime-1000, testTime+session.DefaultTTL, testDistrict)))

	output := mustExecute(t, "check", "--config", configPath, "--request", requestPath, "--at", testAt)
	for _, want := range []string{"ADMITTED", "complete", "posts/day", "1/2 remaining"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	preflight := mustExecute(t, "check", "--config", configPath, "--request", requestPath, "--at", testAt, "--preflight")
	if !strings.Contains(preflight, "WOULD ADMIT") {
		t.Errorf("preflight output = %q, want WOULD ADMIT", preflight)
	}

	mustExecute(t, "check", "--config", configPath, "--request", requestPath, "--at", testAt)

	output, err := execute(t, "check", "--config", configPath, "--request", requestPath, "--at", testAt, "--json")
	expectExitCode(t, err, cli.ExitCodeDenied)
	var decision gate.Decision
	if err := json.Unmarshal([]byte(output), &decision); err != nil {
		t.Fatalf("decoding decision: %v\n%s", err, output)
	}
	if decision.Stage != gate.StageBudget || decision.Reason != "Daily limit of 2 reached for posts/day" {
		t.Errorf("decision = %+v, want a posts/day budget denial", decision)
	}

	shown := mustExecute(t, "budget", "show", "--config", configPath, "--nullifier", testPrincipal, "--at", testAt, "--json")
	var stored budget.NullifierBudget
	if err := json.Unmarshal([]byte(shown), &stored); err != nil {
		t.Fatalf("decoding budget: %v\n%s", err, shown)
	}
	if usage, _ := stored.UsageFor(budget.Posts); usage.Count != 2 {
		t.Errorf("stored posts = %d, want 2", usage.Count)
	}

	tomorrow := strconv.FormatInt(testTime+24*60*60*1000, 10)
	shown = mustExecute(t, "budget", "show", "--config", configPath, "--nullifier", testPrincipal, "--at", tomorrow)
	if !strings.Contains(shown, "2/2 remaining") {
		t.Errorf("budget after rollover:\n%s", shown)
	}
}

func TestCheckDenialsAndErrors(t *testing.T) {
	configPath := writeConfig(t, "")

	request := testRequest(gate.ActionComment)
	request.Proof.Nullifier = "nullifier-attacker"
	output, err := execute(t, "check", "--config", configPath, "--request", writeRequest(t, request), "--at", testAt)
	expectExitCode(t, err, cli.ExitCodeDenied)
	if !strings.Contains(output, "DENIED") || !strings.Contains(output, "nullifier_mismatch") {
		t.Errorf("output = %q, want a nullifier_mismatch denial", output)
	}

	request = testRequest("teleport")
	if _, err := execute(t, "check", "--config", configPath, "--request", writeRequest(t, request)); err == nil || !strings.Contains(err.Error(), "unknown action") {
		t.Errorf("unknown action error = %v", err)
	}

	if _, err := execute(t, "check", "--config", configPath); err == nil || err.Error() != "--request is required" {
		t.Errorf("missing request error = %v", err)
	}

	unknownField := writeFile(t, "bad.json", []byte(`{"action": "post", "nullifer": "x"}`))
	if _, err := execute(t, "check", "--config", configPath, "--request", unknownField); err == nil {
		t.Error("check accepted a request with an unknown field")
	}
}

func TestDelegatedCheckLifecycle(t *testing.T) {
	keyDir := filepath.Join(t.TempDir(), "keys")
	principalKey := strings.TrimSpace(mustExecute(t, "grant", "keygen", "--out", keyDir, "--principal", testPrincipal))
	published, err := os.ReadFile(filepath.Join(keyDir, publicKeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(published)) != principalKey {
		t.Errorf("principal.pub = %q, want %q", published, principalKey)
	}

	configPath := writeConfig(t, "  require_signature: true\n  principal_public_key: "+principalKey)

	mustExecute(t, "familiar", "add", "--config", configPath, "--principal", testPrincipal,
		"--id", "scout", "--label", "Scout", "--tier", "act", "--at", testAt)

	if _, err := execute(t, "grant", "mint", "--config", configPath, "--key", keyDir, "--familiar", "scout",
		"--scope", "moderate", "--at", testAt, "--record"); err == nil {
		t.Error("recording a high-impact grant for an act-tier familiar succeeded")
	}

	grantJSON := mustExecute(t, "grant", "mint", "--config", configPath, "--key", keyDir, "--familiar", "scout",
		"--scope", "post", "--scope", "post", "--scope", "comment", "--ttl", "2h", "--at", testAt, "--record")
	var grant delegation.Grant
	if err := json.Unmarshal([]byte(grantJSON), &grant); err != nil {
		t.Fatalf("decoding grant: %v\n%s", err, grantJSON)
	}
	if len(grant.Scopes) != 2 || grant.ExpiresAt != testTime+2*time.Hour.Milliseconds() {
		t.Errorf("grant = %+v, want two scopes and a two hour lifetime", grant)
	}
	grantPath := writeFile(t, "grant.json", []byte(grantJSON))

	mustExecute(t, "grant", "verify", "--key", keyDir, "--grant", grantPath, "--at", testAt)
	later := strconv.FormatInt(testTime+3*time.Hour.Milliseconds(), 10)
	output, err := execute(t, "grant", "verify", "--public-key", principalKey, "--grant", grantPath, "--at", later)
	expectExitCode(t, err, cli.ExitCodeDenied)
	if !strings.Contains(output, "signature valid, expired") {
		t.Errorf("verify output = %q, want an expired grant", output)
	}

	assertionJSON := mustExecute(t, "grant", "assert", "--key", keyDir, "--grant", grantPath, "--at", testAt)
	var assertion delegation.Assertion
	if err := json.Unmarshal([]byte(assertionJSON), &assertion); err != nil {
		t.Fatalf("decoding assertion: %v", err)
	}
	familiarKey := strings.TrimSpace(mustExecute(t, "familiar", "key", "--key", keyDir, "--id", "scout"))

	request := testRequest(gate.ActionPost)
	request.Delegation = &gate.DelegatedContext{Grant: grant, Assertion: &assertion}
	requestPath := writeRequest(t, request)
	checkArgs := []string{"check", "--config", configPath, "--request", requestPath, "--at", testAt, "--familiar-key", "scout=" + familiarKey}

	output = mustExecute(t, checkArgs...)
	if !strings.Contains(output, "ADMITTED") {
		t.Errorf("delegated check output:\n%s", output)
	}

	tampered := request
	tamperedGrant := grant
	tamperedGrant.Scopes = []delegation.Scope{delegation.ScopePost, delegation.ScopeComment, delegation.ScopeShare}
	tampered.Delegation = &gate.DelegatedContext{Grant: tamperedGrant, Assertion: &assertion}
	output, err = execute(t, "check", "--config", configPath, "--request", writeRequest(t, tampered), "--at", testAt, "--familiar-key", "scout="+familiarKey)
	expectExitCode(t, err, cli.ExitCodeDenied)
	if !strings.Contains(output, gate.ReasonInvalidGrantSignature) {
		t.Errorf("tampered grant output:\n%s", output)
	}

	mustExecute(t, "grant", "revoke", "--config", configPath, "--principal", testPrincipal, "--grant", grant.GrantID, "--at", testAt)
	output, err = execute(t, checkArgs...)
	expectExitCode(t, err, cli.ExitCodeDenied)
	if !strings.Contains(output, "grant is revoked") {
		t.Errorf("revoked grant output:\n%s", output)
	}

	listing := mustExecute(t, "familiar", "list", "--config", configPath, "--principal", testPrincipal, "--at", testAt, "--json")
	var listings []familiarListing
	if err := json.Unmarshal([]byte(listing), &listings); err != nil {
		t.Fatalf("decoding listing: %v\n%s", err, listing)
	}
	if len(listings) != 1 || len(listings[0].Grants) != 1 || listings[0].Grants[0].Status != "revoked" {
		t.Errorf("listing = %+v, want scout with one revoked grant", listings)
	}
}

func TestProofRef(t *testing.T) {
	proof := constituency.Proof{
		DistrictHash: testDistrict,
		Nullifier:    testPrincipal,
		MerkleRoot:   constituency.Root("root"),
	}
	data, err := json.Marshal(proof)
	if err != nil {
		t.Fatal(err)
	}
	proofPath := writeFile(t, "proof.json", data)

	output := mustExecute(t, "proof", "ref", "--proof", proofPath)
	if got, want := strings.TrimSpace(output), constituency.ProofRef(proof); got != want {
		t.Errorf("ref = %q, want %q", got, want)
	}

	output, err = execute(t, "proof", "ref", "--proof", proofPath, "--nullifier", testPrincipal, "--district", "district-beta-hash")
	expectExitCode(t, err, cli.ExitCodeDenied)
	if !strings.Contains(output, "invalid: district_mismatch") {
		t.Errorf("output = %q, want district_mismatch", output)
	}
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{value: "1700000000000", want: 1_700_000_000_000},
		{value: "0", want: 0},
		{value: "2023-11-14T22:13:20Z", want: 1_700_000_000_000},
		{value: "2023-11-14T23:13:20.5+01:00", want: 1_700_000_000_500},
		{value: "-5", wantErr: true},
		{value: "yesterday", wantErr: true},
	}
	for _, test := range tests {
		got, err := parseInstant(test.value)
		if test.wantErr {
			if err == nil {
				t.Errorf("parseInstant(%q) succeeded, want error", test.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseInstant(%q): %v", test.value, err)
			continue
		}
		if got.UnixMilli() != test.want {
			t.Errorf("parseInstant(%q) = %d, want %d", test.value, got.UnixMilli(), test.want)
		}
	}

	pinned, err := commandClock(testAt)
	if err != nil {
		t.Fatal(err)
	}
	if got := clock.UnixMilli(pinned); got != testTime {
		t.Errorf("pinned clock = %d, want %d", got, testTime)
	}
}
