// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/doctorjei/kanibako/cmd/kanibako/commands"
)

func main() {
	if err := commands.Root().Execute(os.Args[1:]); err != nil {
		// A declined confirmation returns an ExitError after printing
		// its own message; everything else gets an error line.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
