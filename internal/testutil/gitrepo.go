// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// GitRepo is a scratch repository in a test's temp dir.
type GitRepo struct {
	t    *testing.T
	Root string
}

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// NewGitRepo initializes an empty repository with a fixed identity.
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()
	RequireGit(t)
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	g := &GitRepo{t: t, Root: root}
	g.Git("init", "-q")
	g.Git("config", "user.name", "Test Author")
	g.Git("config", "user.email", "test@example.com")
	g.Git("config", "commit.gpgsign", "false")
	return g
}

// Git runs a git command in the repository and returns trimmed stdout.
func (g *GitRepo) Git(args ...string) string {
	g.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = g.Root
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_DATE=2024-01-02T03:04:05Z",
		"GIT_COMMITTER_DATE=2024-01-02T03:04:05Z",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		g.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Write writes content to path (relative to Root) without committing.
func (g *GitRepo) Write(path, content string) {
	g.t.Helper()
	full := filepath.Join(g.Root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		g.t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		g.t.Fatal(err)
	}
}

// Commit writes content to path, commits it with msg and returns the new
// commit hash.
func (g *GitRepo) Commit(path, content, msg string) string {
	g.t.Helper()
	g.Write(path, content)
	g.Git("add", "--", path)
	g.Git("commit", "-q", "--allow-empty", "-m", msg)
	return g.Git("rev-parse", "HEAD")
}

// Remove deletes path and commits the removal.
func (g *GitRepo) Remove(path, msg string) string {
	g.t.Helper()
	g.Git("rm", "-q", "--", path)
	g.Git("commit", "-q", "-m", msg)
	return g.Git("rev-parse", "HEAD")
}
