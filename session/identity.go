// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// NamePrefix is the fixed namespace for every container corral manages.
// Cleanup and listing key on it, so it must never change between
// releases.
const NamePrefix = "corral_"

// maxSanitizedLength clamps the readable middle of a derived name so
// deeply nested working directories still produce short container
// names. The digest suffix keeps clamped names distinct, and the clamp
// keeps the tail of the path, which is the most specific part.
const maxSanitizedLength = 48

// identityKey is the BLAKE3 key for identity digests. A fixed constant:
// identities must be stable across invocations and releases or cleanup
// would stop finding containers started by older builds. The bytes are
// the ASCII domain name, zero-padded to the 32 bytes keyed mode
// requires.
var identityKey = [32]byte{
	'c', 'o', 'r', 'r', 'a', 'l', '.', 's', 'e', 's', 's', 'i', 'o', 'n', '.',
	'i', 'd', 'e', 'n', 't', 'i', 't', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// PathResolutionError reports a working directory that could not be
// brought into canonical form.
type PathResolutionError struct {
	Path string
	Err  error
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("resolve working directory %q: %v", e.Path, e.Err)
}

func (e *PathResolutionError) Unwrap() error {
	return e.Err
}

// ResolvePath returns the canonical absolute form of a working
// directory: relative segments resolved, symlinks followed, and the
// result verified to be an existing directory. Everything downstream —
// identity derivation, the bind mount, the in-container working
// directory — uses this form, so two spellings of the same directory
// always reach the same session.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", &PathResolutionError{Path: path, Err: errors.New("empty path")}
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", &PathResolutionError{Path: path, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", &PathResolutionError{Path: path, Err: err}
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", &PathResolutionError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return "", &PathResolutionError{Path: path, Err: errors.New("not a directory")}
	}
	return resolved, nil
}

// DeriveName maps a canonical working directory path to its container
// identity. Deterministic and total: equal paths always produce equal
// names, and every output satisfies the runtime's name grammar
// ([A-Za-z0-9_-] after the prefix).
//
// The readable middle comes from the path itself — separators become
// underscores, every other character outside [A-Za-z0-9_-] is dropped.
// Sanitization alone collides ("/a/b.c" and "/a/b_c" both flatten to
// "a_b_c"), and a collision here is destructive because cleanup
// force-removes whatever holds the name, so a keyed digest of the
// full canonical path is appended to keep distinct directories
// distinct.
func DeriveName(canonicalPath string) string {
	digest := identityDigest(canonicalPath)
	sanitized := sanitizePath(canonicalPath)
	if sanitized == "" {
		return NamePrefix + digest
	}
	return NamePrefix + sanitized + "_" + digest
}

// sanitizePath flattens a path into the runtime-safe name alphabet.
func sanitizePath(path string) string {
	var builder strings.Builder
	for _, char := range path {
		switch {
		case char == filepath.Separator:
			builder.WriteByte('_')
		case char >= 'a' && char <= 'z',
			char >= 'A' && char <= 'Z',
			char >= '0' && char <= '9',
			char == '_', char == '-':
			builder.WriteRune(char)
		}
	}
	sanitized := strings.Trim(builder.String(), "_")
	if len(sanitized) > maxSanitizedLength {
		sanitized = strings.TrimLeft(sanitized[len(sanitized)-maxSanitizedLength:], "_")
	}
	return sanitized
}

// identityDigest returns the 8-hex-character keyed digest of a
// canonical path.
func identityDigest(canonicalPath string) string {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// array rules out.
	hasher, err := blake3.NewKeyed(identityKey[:])
	if err != nil {
		panic("session: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(canonicalPath))
	return hex.EncodeToString(hasher.Sum(nil)[:4])
}
