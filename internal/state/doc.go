// Package state keeps per-session UI state in memory and exports group run
// workspaces as zip artifacts on disk.
package state

import "github.com/user/chatverse/internal/types"

// Compile-time interface compliance checks.
var _ types.SessionStore = (*SessionStore[struct{}])(nil)
var _ types.ArtifactStore = (*ArtifactStore)(nil)
