// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree, flag handling, help output,
// and logging setup shared by all kanibako commands.
package cli
