// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// projectDomainKey is the 32-byte key for BLAKE3 keyed hashing of
// canonical project paths. Domain separation ensures a project hash can
// never collide with a hash of the same bytes computed in another
// context. The byte values are the ASCII encoding of the domain name,
// zero-padded to 32 bytes, so the key is inspectable in hex dumps
// without sacrificing any cryptographic property.
//
// This is a protocol constant — changing it re-keys every existing
// project directory.
var projectDomainKey = [32]byte{
	'k', 'a', 'n', 'i', 'b', 'a', 'k', 'o', '.', 'p', 'r', 'o', 'j', 'e', 'c', 't',
	'.', 'p', 'a', 't', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ProjectHash computes the stable identity hash for a canonical project
// path: the BLAKE3 keyed hash of the UTF-8 path string, rendered as 64
// lowercase hex characters. Identical canonical paths always produce
// identical hashes; the hash is used only as a directory key and is not
// reversible — reverse lookup goes through the breadcrumb file.
//
// The caller is responsible for canonicalizing the path first (see
// [Canonicalize]); hashing a non-canonical spelling of the same
// directory produces a different identity.
func ProjectHash(canonicalPath string) string {
	hasher, err := blake3.NewKeyed(projectDomainKey[:])
	if err != nil {
		// NewKeyed fails only for a wrong key length, which the
		// fixed-size array rules out.
		panic("paths: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(canonicalPath))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ShortHash returns the display form of a project hash: the first 8 hex
// characters. Used in listings and log output where the full 64
// characters would drown the surrounding columns.
func ShortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
