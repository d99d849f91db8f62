// Package ir provides the canonical, persisted representation of callback
// invocation chains.
//
// This package contains type definitions and encoding only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - ChainRecord entries are ordered head first (most recently added
//     callback first); Entry.Next points at the next older entry
//   - Side-table targets are named target0, target1, ... in allocation order
//   - All JSON and YAML keys use snake_case
//   - Content-addressed ids use RFC 8785 canonical JSON and SHA-256 with
//     domain separation
package ir
