package history

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captainhcg/SimpleTrack/internal/diff"
	"github.com/captainhcg/SimpleTrack/internal/locator"
	"github.com/captainhcg/SimpleTrack/internal/testutil"
	"github.com/captainhcg/SimpleTrack/internal/vcs"
)

// pad keeps one function's edits well clear of the other's region.
var pad = strings.Repeat("x = 0\n", 8)

// twoFuncs renders a module with f at lines 9-10 (plus len(top) lines of
// prefix) and g further down.
func twoFuncs(top, fReturn, gReturn string) string {
	return top + pad +
		"def f():\n    return " + fReturn + "\n" +
		pad +
		"def g():\n    return " + gReturn + "\n"
}

// revisions turns texts into preloaded revisions r0, r1, ... in order.
func revisions(texts ...string) []*vcs.Revision {
	revs := make([]*vcs.Revision, len(texts))
	for i, text := range texts {
		revs[i] = vcs.NewRevision(fmt.Sprintf("r%d", i), "m.py", []byte(text))
	}
	return revs
}

func newTestWalker(opts ...Option) *Walker {
	return NewWalker(diff.LineDiffer{}, opts...)
}

func snapshotIDs(snaps []Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Revision.ID
	}
	return out
}

func TestWalk_UnchangedSymbolYieldsOneSnapshot(t *testing.T) {
	t.Parallel()
	revs := revisions(
		twoFuncs("", "1", "5"),
		twoFuncs("", "1", "4"),
		twoFuncs("", "1", "3"),
		twoFuncs("", "1", "2"),
		twoFuncs("", "1", "1"),
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 1)

	snap := res.Snapshots[0]
	assert.Equal(t, "r0", snap.Revision.ID)
	assert.Equal(t, locator.Span{StartLine: 9, EndLine: 10}, snap.Span)
	assert.Equal(t, "def f():\n    return 1\n", snap.Code)
	assert.False(t, res.Truncated)
	assert.Equal(t, StopExhausted, res.Reason)
	assert.Equal(t, 5, res.Examined)
}

func TestWalk_OneChangeYieldsTwoSnapshots(t *testing.T) {
	t.Parallel()
	revs := revisions(
		twoFuncs("", "2", "a"),
		twoFuncs("", "2", "b"),
		twoFuncs("", "2", "c"),
		twoFuncs("", "1", "c"),
		twoFuncs("", "1", "d"),
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r3"}, snapshotIDs(res.Snapshots))
	assert.Equal(t, "def f():\n    return 2\n", res.Snapshots[0].Code)
	assert.Equal(t, "def f():\n    return 1\n", res.Snapshots[1].Code)
}

func TestWalk_OneLineSymbolAtFileTop(t *testing.T) {
	t.Parallel()
	revs := revisions(
		"def f(): return 2\n",
		"def f(): return 1\n",
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r1"}, snapshotIDs(res.Snapshots))
	assert.Equal(t, locator.Span{StartLine: 1, EndLine: 1}, res.Snapshots[1].Span)
	assert.Equal(t, "def f(): return 1\n", res.Snapshots[1].Code)
}

func TestWalk_EditOnLastLineOfBody(t *testing.T) {
	t.Parallel()
	revs := revisions(
		"def f():\n    x = 1\n    return x\n\ny = 2\n",
		"def f():\n    x = 1\n    return x + 1\n\ny = 2\n",
		"def f():\n    x = 1\n    return x + 1\n    print(x)\n\ny = 2\n",
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r1", "r2"}, snapshotIDs(res.Snapshots))
	assert.Equal(t, locator.Span{StartLine: 1, EndLine: 4}, res.Snapshots[2].Span)
}

func TestWalk_SpanFollowsLinesInsertedAbove(t *testing.T) {
	t.Parallel()
	var top strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&top, "# comment %d\n", i)
	}
	revs := revisions(
		twoFuncs("", "1", "0"),
		// Twenty lines above f, far enough away not to touch it.
		twoFuncs(top.String(), "1", "0"),
		twoFuncs(top.String(), "2", "0"),
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r2"}, snapshotIDs(res.Snapshots))
	assert.Equal(t, locator.Span{StartLine: 29, EndLine: 30}, res.Snapshots[1].Span)
	assert.Equal(t, "def f():\n    return 2\n", res.Snapshots[1].Code)
}

func TestWalk_NearbyEditRelocatesWithoutEmitting(t *testing.T) {
	t.Parallel()
	revs := revisions(
		"def f():\n    return 1\n",
		"import os\n\ndef f():\n    return 1\n",
		"import os\n\ndef f():\n    return 2\n",
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r2"}, snapshotIDs(res.Snapshots))
	assert.Equal(t, locator.Span{StartLine: 3, EndLine: 4}, res.Snapshots[1].Span)
}

func TestWalk_MethodScopedToClass(t *testing.T) {
	t.Parallel()
	src := func(method, free string) string {
		return "class C:\n    def m(self):\n        return " + method + "\n" +
			pad +
			"def m():\n    return " + free + "\n"
	}
	revs := revisions(
		src("1", "'a'"),
		src("1", "'b'"),
		src("2", "'b'"),
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "C", "m")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r2"}, snapshotIDs(res.Snapshots))
	for _, s := range res.Snapshots {
		assert.Equal(t, locator.Span{StartLine: 2, EndLine: 3, ClassName: "C"}, s.Span)
	}
	assert.Equal(t, "    def m(self):\n        return 2\n", res.Snapshots[1].Code)
}

func TestWalk_RenamedAwayAndBack(t *testing.T) {
	t.Parallel()
	revs := revisions(
		"def f():\n    return 1\n",
		"def h():\n    return 1\n",
		"def f():\n    return 1\n",
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r1", "r2"}, snapshotIDs(res.Snapshots))
	assert.True(t, res.Snapshots[0].Span.Found())
	assert.False(t, res.Snapshots[1].Span.Found())
	assert.Empty(t, res.Snapshots[1].Code)
	assert.True(t, res.Snapshots[2].Span.Found())
}

func TestWalk_AbsentInFirstRevision(t *testing.T) {
	t.Parallel()
	revs := revisions(
		"x = 1\n",
		"x = 2\n",
		"def f():\n    pass\n",
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Equal(t, []string{"r0", "r2"}, snapshotIDs(res.Snapshots))
	assert.False(t, res.Snapshots[0].Span.Found())
	assert.Equal(t, "def f():\n    pass\n", res.Snapshots[1].Code)
}

func TestWalk_ParseFailureIsUnset(t *testing.T) {
	t.Parallel()
	revs := revisions(
		"def f():\n    return 1\n",
		"def f(:\n    return 1\n",
	)

	res, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 2)
	assert.False(t, res.Snapshots[1].Span.Found())
}

func distinctBodies(n int) []*vcs.Revision {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = twoFuncs("", fmt.Sprint(i), "0")
	}
	return revisions(texts...)
}

func TestWalk_MaxSnapshots(t *testing.T) {
	t.Parallel()

	res, err := newTestWalker(WithMaxSnapshots(3)).Walk(context.Background(), distinctBodies(10), "", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1", "r2"}, snapshotIDs(res.Snapshots))
	assert.True(t, res.Truncated)
	assert.Equal(t, StopMaxSnapshots, res.Reason)
	assert.Equal(t, 3, res.Examined)

	// Reaching the cap on the last revision is not a truncation.
	res, err = newTestWalker(WithMaxSnapshots(3)).Walk(context.Background(), distinctBodies(3), "", "f")
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 3)
	assert.False(t, res.Truncated)
	assert.Equal(t, StopExhausted, res.Reason)

	res, err = newTestWalker(WithMaxSnapshots(0)).Walk(context.Background(), distinctBodies(30), "", "f")
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 30)
}

func TestWalk_DefaultCap(t *testing.T) {
	t.Parallel()
	res, err := newTestWalker().Walk(context.Background(), distinctBodies(DefaultMaxSnapshots+5), "", "f")
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, DefaultMaxSnapshots)
	assert.True(t, res.Truncated)
}

// steppingClock advances by step on every reading.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestWalk_Timeout(t *testing.T) {
	t.Parallel()
	w := newTestWalker(WithTimeout(2*time.Second), WithClock(steppingClock(time.Second)))

	res, err := w.Walk(context.Background(), distinctBodies(10), "", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1"}, snapshotIDs(res.Snapshots))
	assert.True(t, res.Truncated)
	assert.Equal(t, StopTimeout, res.Reason)
	assert.Equal(t, 2, res.Examined)

	w = newTestWalker(WithTimeout(0), WithClock(steppingClock(time.Hour)))
	res, err = w.Walk(context.Background(), distinctBodies(5), "", "f")
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 5)
	assert.False(t, res.Truncated)
}

func TestWalk_Empty(t *testing.T) {
	t.Parallel()
	res, err := newTestWalker().Walk(context.Background(), nil, "", "f")
	require.NoError(t, err)
	assert.Empty(t, res.Snapshots)
	assert.Equal(t, 0, res.Examined)
}

type failingDiffer struct{ err error }

func (d failingDiffer) Hunks(context.Context, *vcs.Revision, *vcs.Revision) ([]diff.Hunk, error) {
	return nil, d.err
}

func TestWalk_DifferErrorAborts(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	w := NewWalker(failingDiffer{err: boom})

	res, err := w.Walk(context.Background(), distinctBodies(3), "", "f")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "r0..r1")
}

func TestWalk_TextErrorAborts(t *testing.T) {
	t.Parallel()
	revs := []*vcs.Revision{{ID: "orphan", Path: "m.py"}}

	_, err := newTestWalker().Walk(context.Background(), revs, "", "f")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vcs.ErrPathNotFound)
}

func TestWalk_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestWalker().Walk(ctx, distinctBodies(3), "", "f")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk_NoAdjacentDuplicates(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		n := 2 + rng.Intn(15)
		texts := make([]string, n)
		bodies := make([]string, n)
		for i := range texts {
			bodies[i] = fmt.Sprint(rng.Intn(3))
			texts[i] = twoFuncs("", bodies[i], fmt.Sprint(rng.Intn(3)))
		}

		res, err := newTestWalker(WithMaxSnapshots(0)).Walk(context.Background(), revisions(texts...), "", "f")
		require.NoError(t, err)

		runs := 1
		for i := 1; i < n; i++ {
			if bodies[i] != bodies[i-1] {
				runs++
			}
		}
		require.Len(t, res.Snapshots, runs, "round %d bodies %v", round, bodies)
		for i := 1; i < len(res.Snapshots); i++ {
			assert.NotEqual(t, res.Snapshots[i-1].Code, res.Snapshots[i].Code, "round %d", round)
		}
	}
}

func TestWalk_GitOneLineSymbolAtFileTop(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	c1 := g.Commit("m.py", "def f(): return 1\n", "one")
	c2 := g.Commit("m.py", "def f(): return 2\n", "two")

	repo, err := vcs.Open(context.Background(), g.Root)
	require.NoError(t, err)

	for name, d := range map[string]diff.Differ{"git": diff.GitDiffer{Repo: repo}, "lines": diff.LineDiffer{}} {
		t.Run(name, func(t *testing.T) {
			revs, err := repo.ListRevisions(context.Background(), "m.py", vcs.ListOptions{})
			require.NoError(t, err)

			res, err := NewWalker(d).Walk(context.Background(), revs, "", "f")
			require.NoError(t, err)
			require.Equal(t, []string{c2, c1}, snapshotIDs(res.Snapshots))
			assert.Equal(t, "def f(): return 2\n", res.Snapshots[0].Code)
			assert.Equal(t, "def f(): return 1\n", res.Snapshots[1].Code)
		})
	}
}

func TestWalk_GitHistoryWithDeletion(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	v1 := twoFuncs("", "1", "0")
	v2 := twoFuncs("", "2", "0")
	c1 := g.Commit("m.py", v1, "add f")
	g.Commit("other.py", "y = 1\n", "unrelated")
	c2 := g.Commit("m.py", v2, "change f")
	c3 := g.Remove("m.py", "drop m.py")
	c4 := g.Commit("m.py", v2, "restore m.py")

	repo, err := vcs.Open(context.Background(), g.Root)
	require.NoError(t, err)
	revs, err := repo.ListRevisions(context.Background(), "m.py", vcs.ListOptions{})
	require.NoError(t, err)
	require.Len(t, revs, 4)

	for name, d := range map[string]diff.Differ{"git": diff.GitDiffer{Repo: repo}, "lines": diff.LineDiffer{}} {
		t.Run(name, func(t *testing.T) {
			// Fresh revisions per differ so cached texts are not shared.
			revs, err := repo.ListRevisions(context.Background(), "m.py", vcs.ListOptions{})
			require.NoError(t, err)

			res, err := NewWalker(d).Walk(context.Background(), revs, "", "f")
			require.NoError(t, err)
			require.Equal(t, []string{c4, c3, c2, c1}, snapshotIDs(res.Snapshots))
			assert.True(t, res.Snapshots[0].Span.Found())
			assert.False(t, res.Snapshots[1].Span.Found())
			assert.Equal(t, "def f():\n    return 2\n", res.Snapshots[2].Code)
			assert.Equal(t, "def f():\n    return 1\n", res.Snapshots[3].Code)
			assert.Equal(t, "change f", res.Snapshots[2].Revision.Subject)
		})
	}
}
