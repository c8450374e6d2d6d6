// Package workspace brings the local source tree to a pinned revision of the
// upstream repository, tolerating whatever state a previous run left behind.
package workspace

import (
	"os"
	"path/filepath"
)

// State classifies the workspace directory before a sync. The sync path is a
// deterministic function of this state: absent clones, foreign is replaced
// then cloned, tracked is fetched and checked out in place.
type State int

const (
	// StateAbsent means the directory does not exist.
	StateAbsent State = iota
	// StateForeign means the directory exists but carries no git metadata:
	// a stale cache or partial restore that must never mix with a fresh
	// checkout.
	StateForeign
	// StateTracked means the directory is a git checkout.
	StateTracked
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateForeign:
		return "foreign"
	case StateTracked:
		return "tracked"
	default:
		return "unknown"
	}
}

// Classify inspects dir and returns its sync state.
func Classify(dir string) State {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return StateAbsent
	}
	if err != nil || !info.IsDir() {
		return StateForeign
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return StateTracked
	}
	return StateForeign
}
