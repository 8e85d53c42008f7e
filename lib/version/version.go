// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the kanibako build version.
package version

import "runtime/debug"

// Version is the release version, overridden at build time via
// -ldflags "-X .../lib/version.Version=v1.2.3".
var Version = "dev"

// String returns the version, falling back to module build info when
// no release version was linked in.
func String() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
