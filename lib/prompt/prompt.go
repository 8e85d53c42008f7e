// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt provides the confirmation gate used before
// destructive operations. Cancellation is a first-class outcome
// ([ErrCancelled]), distinguishable from hard failure, so callers can
// exit with a distinct status instead of treating a declined prompt as
// an error.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrCancelled indicates the user declined a confirmation prompt. The
// operation performed no mutation.
var ErrCancelled = errors.New("cancelled by user")

// Confirmer gates destructive operations. Confirm returns nil when the
// operation may proceed and ErrCancelled when the user declined.
type Confirmer interface {
	Confirm(message string) error
}

// Terminal prompts on stderr and requires a literal "yes" line on
// stdin. When stdin is not a terminal (scripts, cron), the prompt
// cannot be answered and the operation is declined — destructive
// commands in non-interactive contexts must pass an explicit
// skip-confirmation flag instead.
type Terminal struct {
	// In and Out default to os.Stdin and os.Stderr when nil.
	In  io.Reader
	Out io.Writer
}

// Confirm prints the message and waits for a "yes" line.
func (t *Terminal) Confirm(message string) error {
	in := t.In
	out := t.Out
	if in == nil {
		in = os.Stdin
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("%w: stdin is not a terminal (use --force to skip confirmation)", ErrCancelled)
		}
	}
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprintf(out, "%s\nType 'yes' to confirm: ", message)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return ErrCancelled
	}
	if strings.TrimSpace(line) != "yes" {
		return ErrCancelled
	}
	return nil
}

// Scripted is a non-interactive confirmer: Accept(true) confirms
// everything (the --force path), Accept(false) declines everything.
// Tests use it to exercise both branches of a confirmation gate.
type Scripted struct {
	accept bool
}

// Accept returns a Scripted confirmer with the given fixed answer.
func Accept(accept bool) *Scripted {
	return &Scripted{accept: accept}
}

// Confirm answers with the scripted decision.
func (s *Scripted) Confirm(string) error {
	if s.accept {
		return nil
	}
	return ErrCancelled
}
