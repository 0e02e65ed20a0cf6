package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/captainhcg/SimpleTrack/internal/vcs"
)

// contextLines matches the --unified=0 passed to git, so both differs report
// only the changed lines.
const contextLines = 0

// GitDiffer asks git for the diff and parses its hunk headers.
type GitDiffer struct {
	Repo *vcs.Repo
}

// Hunks runs "git diff from to -- path" and returns the parsed hunks.
func (g GitDiffer) Hunks(ctx context.Context, from, to *vcs.Revision) ([]Hunk, error) {
	if g.Repo == nil {
		return nil, errors.New("diff: git differ has no repository")
	}
	out, err := g.Repo.Diff(ctx, from.ID, to.ID, from.Path)
	if err != nil {
		return nil, err
	}
	return ParseUnified(out)
}

// ParseUnified extracts hunks from unified diff output. Empty input means
// no changes.
func ParseUnified(out []byte) ([]Hunk, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}
	fileDiffs, err := godiff.ParseMultiFileDiff(out)
	if err != nil {
		return nil, fmt.Errorf("diff: parse unified diff: %w", err)
	}
	var hunks []Hunk
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			hunks = append(hunks, Hunk{
				OldStart: int(h.OrigStartLine),
				OldLines: int(h.OrigLines),
				NewStart: int(h.NewStartLine),
				NewLines: int(h.NewLines),
			})
		}
	}
	return hunks, nil
}

// LineDiffer diffs the two revisions' texts in memory. A path missing from
// either revision is diffed as an empty file.
type LineDiffer struct{}

// Hunks computes grouped opcodes over the lines of both texts and converts
// each group to a unified hunk range.
func (LineDiffer) Hunks(ctx context.Context, from, to *vcs.Revision) ([]Hunk, error) {
	a, err := textOrEmpty(ctx, from)
	if err != nil {
		return nil, err
	}
	b, err := textOrEmpty(ctx, to)
	if err != nil {
		return nil, err
	}
	return LineHunks(a, b), nil
}

// LineHunks returns the unified hunks turning a into b.
func LineHunks(a, b string) []Hunk {
	m := difflib.NewMatcher(splitLines(a), splitLines(b))
	var hunks []Hunk
	for _, group := range m.GetGroupedOpCodes(contextLines) {
		if unchanged(group) {
			continue
		}
		first, last := group[0], group[len(group)-1]
		oldStart, oldLines := unifiedRange(first.I1, last.I2)
		newStart, newLines := unifiedRange(first.J1, last.J2)
		hunks = append(hunks, Hunk{
			OldStart: oldStart,
			OldLines: oldLines,
			NewStart: newStart,
			NewLines: newLines,
		})
	}
	return hunks
}

// unifiedRange converts a 0-based half-open range to a unified header pair.
func unifiedRange(lo, hi int) (start, length int) {
	length = hi - lo
	if length == 0 {
		return lo, 0
	}
	return lo + 1, length
}

func unchanged(group []difflib.OpCode) bool {
	for _, op := range group {
		if op.Tag != 'e' {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func textOrEmpty(ctx context.Context, rev *vcs.Revision) (string, error) {
	text, err := rev.Text(ctx)
	if errors.Is(err, vcs.ErrPathNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(text), nil
}
