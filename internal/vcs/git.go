// Package vcs is the read-only git surface: enumerating the revisions that
// touched a file, fetching a file's text at a revision, and diffing a file
// between two revisions. Every operation shells out to the git binary.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/captainhcg/SimpleTrack/internal/slogutil"
)

// DefaultCommandTimeout bounds a single git invocation.
const DefaultCommandTimeout = 30 * time.Second

var (
	// ErrPathNotFound is returned when a file does not exist at a revision.
	ErrPathNotFound = errors.New("vcs: path not found at revision")
	// ErrOutsideRepo is returned by RelPath for paths outside the work tree.
	ErrOutsideRepo = errors.New("vcs: path is outside the repository")
)

// CommandError is a failed git invocation. Stderr carries git's diagnostic.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Repo runs git commands against one repository work tree.
type Repo struct {
	root    string
	timeout time.Duration
	logger  *slog.Logger
}

// RepoOption configures a Repo.
type RepoOption func(*Repo)

// WithCommandTimeout sets the per-invocation timeout. Non-positive values
// keep the default.
func WithCommandTimeout(d time.Duration) RepoOption {
	return func(r *Repo) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) RepoOption {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

// Open verifies that dir is inside a git work tree and returns a Repo rooted
// at the top level of that tree.
func Open(ctx context.Context, dir string, opts ...RepoOption) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve %q: %w", dir, err)
	}
	r := &Repo{
		root:    abs,
		timeout: DefaultCommandTimeout,
		logger:  slogutil.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	if top := strings.TrimSpace(string(out)); top != "" {
		r.root = filepath.Clean(top)
	}
	return r, nil
}

// Root returns the absolute path of the work tree's top level.
func (r *Repo) Root() string {
	return r.root
}

// RelPath converts path to the slash-separated, root-relative form git
// expects in "rev:path" arguments. Relative paths are taken as relative to
// the repository root.
func (r *Repo) RelPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		rel := filepath.Clean(path)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRepo, path)
		}
		return filepath.ToSlash(rel), nil
	}
	root := r.root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	} else if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		// The file itself may only exist in history.
		path = filepath.Join(dir, filepath.Base(path))
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not under %s", ErrOutsideRepo, path, r.root)
	}
	return filepath.ToSlash(rel), nil
}

// run executes git with args in the repository root and returns stdout.
func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("git", "args", args, "duration", time.Since(start), "ok", err == nil)
	if err != nil {
		cerr := &CommandError{
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			cerr.Err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return nil, cerr
	}
	return stdout.Bytes(), nil
}

// Diff returns the unified diff of path between two revisions, without
// context lines. The output is empty when the file did not change.
func (r *Repo) Diff(ctx context.Context, from, to, path string) ([]byte, error) {
	return r.run(ctx, "diff", "--no-color", "--no-ext-diff", "--unified=0", from, to, "--", path)
}

// show returns path's content at rev.
func (r *Repo) show(ctx context.Context, rev, path string) ([]byte, error) {
	out, err := r.run(ctx, "show", "--no-textconv", rev+":"+path)
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) && isMissingPath(cerr.Stderr) {
			return nil, fmt.Errorf("vcs: show %s:%s: %w", rev, path, ErrPathNotFound)
		}
		return nil, err
	}
	return out, nil
}

// isMissingPath recognizes git's "no such path in this tree" diagnostics.
func isMissingPath(stderr string) bool {
	return strings.Contains(stderr, "does not exist in") ||
		strings.Contains(stderr, "exists on disk, but not in")
}
