// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package paths resolves where a project's persistent state lives on
// disk and lazily creates any structure that is missing.
//
// A project is identified by the hash of its canonical directory path
// (see [ProjectHash]); all resolved locations are recomputed from that
// canonical path on every invocation and never cached between runs.
// Three layouts exist:
//
//   - account-centric: metadata under the user's data directory, keyed
//     by hash, with the agent home nested inside it
//   - decentralized: everything inside the project directory itself
//   - workset: state under a named shared root, keyed by member name
//
// [DetectMode] decides which layout is authoritative for a given path;
// the Resolve functions compute the [ProjectPaths] descriptor and, on
// request, initialize or self-heal the on-disk structure. Moving a
// project between layouts is the migration engine's job, not this
// package's.
package paths
