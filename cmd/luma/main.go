// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/cmd/luma/commands"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	err := commands.Root(os.Stdout).Execute(args)
	if err == nil {
		return cli.ExitCodeOK
	}
	// Commands that already reported their outcome return an
	// ExitError. Don't print a redundant "error:" line for those.
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return cli.ExitCodeError
}
