// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a specific exit code without an extra error line.
// The main function checks for it on returned errors: the command has
// already written its own output, so only the code propagates. Used
// for outcomes that are valid but non-zero, like a declined
// confirmation prompt exiting 2.
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
