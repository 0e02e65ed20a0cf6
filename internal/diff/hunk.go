// Package diff decides whether a change between two revisions of a file
// touched a tracked line range.
//
// Both Differ implementations report changes as unified-diff hunks in the
// coordinate space of the older revision, without context lines. The overlap
// test is strict: a changed region that only abuts the tracked range does not
// overlap it.
package diff

import (
	"context"
	"fmt"

	"github.com/captainhcg/SimpleTrack/internal/locator"
	"github.com/captainhcg/SimpleTrack/internal/vcs"
)

// Hunk is one changed region. OldStart/NewStart are 1-based; a zero-length
// side starts at the line preceding the change, as in unified diff headers.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// OldEnd is one past the last old line the hunk changes. A pure insertion
// counts as changing the line it follows.
func (h Hunk) OldEnd() int {
	return h.OldStart + max(h.OldLines, 1)
}

func (h Hunk) String() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// Differ produces the hunks of a file between two revisions.
type Differ interface {
	Hunks(ctx context.Context, from, to *vcs.Revision) ([]Hunk, error)
}

// Overlaps reports whether any hunk changes a line in [start, end].
// With the hunk's changed region as [cs, ce) and the range as
// [start, end+1), the test is (start-ce)*(end+1-cs) < 0, so regions that
// merely abut the range do not count.
func Overlaps(hunks []Hunk, start, end int) bool {
	for _, h := range hunks {
		if overlaps(h, start, end) {
			return true
		}
	}
	return false
}

func overlaps(h Hunk, start, end int) bool {
	// int64 keeps the product from overflowing on 32-bit platforms.
	return int64(start-h.OldEnd())*int64(end+1-h.OldStart) < 0
}

// Overlapping diffs from and to with d and reports whether the changes touch
// [start, end] in from's coordinates.
func Overlapping(ctx context.Context, d Differ, from, to *vcs.Revision, start, end int) (bool, error) {
	hunks, err := d.Hunks(ctx, from, to)
	if err != nil {
		return false, err
	}
	return Overlaps(hunks, start, end), nil
}

// Touches reports whether hunks change span. An unset span is touched by
// any hunk, including the zero-length old side of a re-created file.
func Touches(hunks []Hunk, span locator.Span) bool {
	if !span.Found() {
		return len(hunks) > 0
	}
	return Overlaps(hunks, span.StartLine, span.EndLine)
}

// Shift moves a span that none of hunks overlaps into the coordinates of the
// newer revision, by the net line delta of the hunks lying before it. Unset
// spans are returned unchanged.
func Shift(hunks []Hunk, span locator.Span) locator.Span {
	if !span.Found() {
		return span
	}
	delta := 0
	for _, h := range hunks {
		if h.OldEnd() <= span.StartLine {
			delta += h.NewLines - h.OldLines
		}
	}
	span.StartLine += delta
	span.EndLine += delta
	return span
}
