// SPDX-License-Identifier: MPL-2.0

// Package cachestore persists compiled module bodies next to their sources.
//
// A cache file is laid out as
//
//	[4 bytes magic][4 bytes source mtime][program body]
//
// with both header words in little-endian order. A cache is only trusted
// when the magic equals program.Magic and the stored mtime equals the
// current mtime of the source.
package cachestore
