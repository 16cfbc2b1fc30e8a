// SPDX-License-Identifier: MPL-2.0

// Package program defines the serialized module body shared by the cache
// store, the frozen tables and the execution collaborators.
//
// Bodies are encoded with MessagePack. The Magic constant identifies the
// encoding version and is written in front of every cache file and frozen
// bundle.
package program
