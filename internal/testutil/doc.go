// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixtures for tests that lay out module trees on
// an afero filesystem, and helpers that fail the test instead of returning
// errors.
package testutil
