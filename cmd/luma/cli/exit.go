// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// Exit codes shared by every luma command.
const (
	ExitCodeOK     = 0
	ExitCodeDenied = 1
	ExitCodeError  = 2
)

// ExitError signals a non-zero exit code for an outcome the command
// has already reported, such as a denied gate decision. main exits
// with Code and prints nothing more.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
