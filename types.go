package simpletrack

import (
	"github.com/captainhcg/SimpleTrack/internal/history"
	"github.com/captainhcg/SimpleTrack/internal/locator"
	"github.com/captainhcg/SimpleTrack/internal/vcs"
)

// Public aliases for the internal types that appear in Tracker results.
// They are identical to the internal types; no conversion is needed.

type Snapshot = history.Snapshot
type Span = locator.Span
type Revision = vcs.Revision
type CommandError = vcs.CommandError
type StopReason = history.StopReason

const (
	StopExhausted    = history.StopExhausted
	StopTimeout      = history.StopTimeout
	StopMaxSnapshots = history.StopMaxSnapshots
)

// Result is the history of one symbol.
type Result struct {
	Path         string
	ClassName    string
	FunctionName string
	Snapshots    []Snapshot
	// Revisions is the number of revisions that touched the file.
	Revisions int
	// Examined is how many of them the walk visited.
	Examined  int
	Truncated bool
	Reason    StopReason
}
