package vcs

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captainhcg/SimpleTrack/internal/testutil"
)

func openTestRepo(t *testing.T, g *testutil.GitRepo) *Repo {
	t.Helper()
	r, err := Open(context.Background(), g.Root)
	require.NoError(t, err)
	return r
}

func TestOpen_NotARepository(t *testing.T) {
	t.Parallel()
	testutil.RequireGit(t)

	_, err := Open(context.Background(), t.TempDir())
	require.Error(t, err)

	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.NotZero(t, cerr.ExitCode)
	assert.Contains(t, cerr.Error(), "rev-parse")
	assert.NotEmpty(t, cerr.Stderr)
}

func TestOpen_FromSubdirectoryFindsTopLevel(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	g.Commit("pkg/mod.py", "x = 1\n", "init")

	r, err := Open(context.Background(), filepath.Join(g.Root, "pkg"))
	require.NoError(t, err)
	assert.Equal(t, g.Root, r.Root())
}

func TestListRevisions_NewestFirstWithMetadata(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	first := g.Commit("a.py", "x = 1\n", "first commit")
	g.Commit("other.py", "y = 1\n", "unrelated")
	second := g.Commit("a.py", "x = 2\n", "second commit")

	r := openTestRepo(t, g)
	revs, err := r.ListRevisions(context.Background(), "a.py", ListOptions{})
	require.NoError(t, err)
	require.Len(t, revs, 2)

	assert.Equal(t, second, revs[0].ID)
	assert.Equal(t, first, revs[1].ID)
	assert.Equal(t, "second commit", revs[0].Subject)
	assert.Equal(t, "Test Author", revs[0].Author)
	assert.Equal(t, "2024-01-02", revs[0].Date)
	assert.Equal(t, "a.py", revs[0].Path)
	assert.Len(t, revs[0].ShortID(), 7)
}

func TestListRevisions_ReverseAndMaxCount(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	c1 := g.Commit("a.py", "x = 1\n", "c1")
	c2 := g.Commit("a.py", "x = 2\n", "c2")
	c3 := g.Commit("a.py", "x = 3\n", "c3")

	r := openTestRepo(t, g)
	ctx := context.Background()

	revs, err := r.ListRevisions(ctx, "a.py", ListOptions{Reverse: true})
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, []string{c1, c2, c3}, ids(revs))

	revs, err = r.ListRevisions(ctx, "a.py", ListOptions{MaxCount: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{c3, c2}, ids(revs))

	revs, err = r.ListRevisions(ctx, "a.py", ListOptions{Ref: c2})
	require.NoError(t, err)
	assert.Equal(t, []string{c2, c1}, ids(revs))
}

func TestListRevisions_BadRefIsCommandError(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	g.Commit("a.py", "x = 1\n", "c1")

	r := openTestRepo(t, g)
	_, err := r.ListRevisions(context.Background(), "a.py", ListOptions{Ref: "no-such-branch"})
	require.Error(t, err)

	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Stderr, "no-such-branch")
}

func TestListRevisions_UntrackedFileIsEmpty(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	g.Commit("a.py", "x = 1\n", "c1")

	r := openTestRepo(t, g)
	revs, err := r.ListRevisions(context.Background(), "never.py", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestRevisionText_FetchedOnceAndCached(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	c1 := g.Commit("a.py", "x = 1\n", "c1")
	g.Commit("a.py", "x = 2\n", "c2")

	r := openTestRepo(t, g)
	rev := r.Revision(c1, "a.py")

	text, err := rev.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(text))

	// A cancelled context must not matter once the text is cached.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	again, err := rev.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, text, again)
}

func TestRevisionText_CancellationIsNotCached(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	c1 := g.Commit("a.py", "x = 1\n", "c1")

	r := openTestRepo(t, g)
	rev := r.Revision(c1, "a.py")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rev.Text(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	text, err := rev.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(text))
}

func TestRevisionText_MissingPath(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	c1 := g.Commit("a.py", "x = 1\n", "c1")
	g.Commit("b.py", "y = 1\n", "c2")

	r := openTestRepo(t, g)
	_, err := r.Revision(c1, "b.py").Text(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestRevisionText_BadRevisionIsNotMissingPath(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	g.Commit("a.py", "x = 1\n", "c1")

	r := openTestRepo(t, g)
	_, err := r.Revision("0000000000000000000000000000000000000000", "a.py").Text(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPathNotFound)
}

func TestNewRevision_Preloaded(t *testing.T) {
	t.Parallel()
	rev := NewRevision("worktree", "a.py", []byte("x = 1\n"))

	text, err := rev.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(text))
	assert.Equal(t, "worktre", rev.ShortID())
}

func TestRevisionText_NoRepository(t *testing.T) {
	t.Parallel()
	rev := &Revision{ID: "abc", Path: "a.py"}
	_, err := rev.Text(context.Background())
	require.Error(t, err)
}

func TestDiff(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	c1 := g.Commit("a.py", "a\nb\nc\n", "c1")
	c2 := g.Commit("a.py", "a\nB\nc\n", "c2")

	r := openTestRepo(t, g)
	out, err := r.Diff(context.Background(), c1, c2, "a.py")
	require.NoError(t, err)
	assert.Contains(t, string(out), "@@ -2 +2 @@")
	assert.NotContains(t, string(out), "\n a\n")

	out, err = r.Diff(context.Background(), c1, c1, "a.py")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRelPath(t *testing.T) {
	t.Parallel()
	g := testutil.NewGitRepo(t)
	g.Commit("pkg/mod.py", "x = 1\n", "init")
	r := openTestRepo(t, g)

	rel, err := r.RelPath(filepath.Join(g.Root, "pkg", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "pkg/mod.py", rel)

	rel, err = r.RelPath("pkg/./mod.py")
	require.NoError(t, err)
	assert.Equal(t, "pkg/mod.py", rel)

	_, err = r.RelPath(filepath.Dir(g.Root))
	assert.ErrorIs(t, err, ErrOutsideRepo)

	_, err = r.RelPath("pkg/../../mod.py")
	assert.ErrorIs(t, err, ErrOutsideRepo)

	// A file that only exists in history still resolves.
	rel, err = r.RelPath(filepath.Join(g.Root, "pkg", "gone.py"))
	require.NoError(t, err)
	assert.Equal(t, "pkg/gone.py", rel)
}

func TestCommandError_Unwrap(t *testing.T) {
	t.Parallel()
	inner := &exec.Error{Name: "git", Err: exec.ErrNotFound}
	err := &CommandError{Args: []string{"log"}, Err: inner}

	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Equal(t, "git log: exec: \"git\": executable file not found in $PATH", err.Error())
}

func ids(revs []*Revision) []string {
	out := make([]string, len(revs))
	for i, r := range revs {
		out[i] = r.ID
	}
	return out
}
