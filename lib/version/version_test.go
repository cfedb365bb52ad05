// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	saved := [4]string{GitCommit, GitDirty, BuildTime, Version}
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime, Version = saved[0], saved[1], saved[2], saved[3]
	})

	GitCommit, GitDirty, BuildTime, Version = "abc1234", "false", "2026-01-02T03:04:05Z", "1.2.3"
	if got, want := Info(), "1.2.3 (abc1234, 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got, want := Info(), "1.2.3 (abc1234-dirty, 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("Info() dirty = %q, want %q", got, want)
	}
	if got := Short(); got != "1.2.3" {
		t.Errorf("Short() = %q, want 1.2.3", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() = %q, want it to start with Info()", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q, want the platform", full)
	}
}
