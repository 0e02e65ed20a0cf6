package simpletrack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/captainhcg/SimpleTrack/internal/diff"
	"github.com/captainhcg/SimpleTrack/internal/history"
	"github.com/captainhcg/SimpleTrack/internal/locator"
	"github.com/captainhcg/SimpleTrack/internal/slogutil"
	"github.com/captainhcg/SimpleTrack/internal/vcs"
)

var (
	// ErrNoPath is returned when a query names no file.
	ErrNoPath = errors.New("simpletrack: no file path given")
	// ErrNoSymbol is returned when a query names neither a class nor a
	// function.
	ErrNoSymbol = errors.New("simpletrack: no class or function given")
	// ErrUnknownDiffer is returned by ParseDiffer for unrecognized names.
	ErrUnknownDiffer = errors.New("simpletrack: unknown differ")
	// ErrOutsideRepo is returned for a query path outside the repository.
	ErrOutsideRepo = vcs.ErrOutsideRepo
)

// DifferKind selects how changes between revisions are detected.
type DifferKind string

const (
	// DifferGit asks git for each diff.
	DifferGit DifferKind = "git"
	// DifferLines diffs revision texts in memory.
	DifferLines DifferKind = "lines"
)

// ParseDiffer converts a configuration string to a DifferKind. Empty means
// DifferGit.
func ParseDiffer(s string) (DifferKind, error) {
	switch k := DifferKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return DifferGit, nil
	case DifferGit, DifferLines:
		return k, nil
	default:
		return "", fmt.Errorf("%w %q (want git or lines)", ErrUnknownDiffer, s)
	}
}

// worktreeID identifies the working tree copy of a file in results.
const worktreeID = "worktree"

// Tracker answers history and locate queries against one git repository.
// It holds no mutable state after New returns and is safe for concurrent
// use.
type Tracker struct {
	repo   *vcs.Repo
	walker *history.Walker
	logger *slog.Logger

	timeout      time.Duration
	maxSnapshots int
	differ       DifferKind
	reverse      bool
	ref          string
	gitTimeout   time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimeout sets the wall-clock budget of one history walk. Zero disables
// it.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.timeout = d }
}

// WithMaxSnapshots caps the snapshots of one history. Zero disables the cap.
func WithMaxSnapshots(n int) Option {
	return func(t *Tracker) { t.maxSnapshots = n }
}

// WithDiffer selects the change detector.
func WithDiffer(k DifferKind) Option {
	return func(t *Tracker) { t.differ = k }
}

// WithReverse walks history oldest first.
func WithReverse(reverse bool) Option {
	return func(t *Tracker) { t.reverse = reverse }
}

// WithRef walks history back from ref instead of HEAD.
func WithRef(ref string) Option {
	return func(t *Tracker) { t.ref = ref }
}

// WithGitTimeout bounds each git invocation.
func WithGitTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.gitTimeout = d }
}

// WithLogger sets the logger for the tracker and everything it drives.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New opens the git repository containing dir.
func New(ctx context.Context, dir string, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		logger:       slogutil.NewDiscardLogger(),
		timeout:      history.DefaultTimeout,
		maxSnapshots: history.DefaultMaxSnapshots,
		differ:       DifferGit,
		gitTimeout:   vcs.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if _, err := ParseDiffer(string(t.differ)); err != nil {
		return nil, err
	}

	repo, err := vcs.Open(ctx, dir, vcs.WithCommandTimeout(t.gitTimeout), vcs.WithLogger(t.logger))
	if err != nil {
		return nil, fmt.Errorf("simpletrack: open repository: %w", err)
	}
	t.repo = repo

	var d diff.Differ = diff.GitDiffer{Repo: repo}
	if t.differ == DifferLines {
		d = diff.LineDiffer{}
	}
	t.walker = history.NewWalker(d,
		history.WithTimeout(t.timeout),
		history.WithMaxSnapshots(t.maxSnapshots),
		history.WithLogger(t.logger),
	)
	return t, nil
}

// Root returns the repository's top-level directory.
func (t *Tracker) Root() string {
	return t.repo.Root()
}

// History returns the distinct versions of a class or method in path, in
// the tracker's walk order. path is taken relative to the repository root
// unless absolute.
func (t *Tracker) History(ctx context.Context, path, className, functionName string) (*Result, error) {
	rel, err := t.query(path, className, functionName)
	if err != nil {
		return nil, err
	}

	revs, err := t.repo.ListRevisions(ctx, rel, vcs.ListOptions{Ref: t.ref, Reverse: t.reverse})
	if err != nil {
		return nil, fmt.Errorf("simpletrack: list revisions: %w", err)
	}

	walk, err := t.walker.Walk(ctx, revs, className, functionName)
	if err != nil {
		return nil, fmt.Errorf("simpletrack: walk %s: %w", rel, err)
	}

	t.logger.Info("history",
		"path", rel, "class", className, "function", functionName,
		"revisions", len(revs), "examined", walk.Examined,
		"snapshots", len(walk.Snapshots), "reason", walk.Reason)

	return &Result{
		Path:         rel,
		ClassName:    className,
		FunctionName: functionName,
		Snapshots:    walk.Snapshots,
		Revisions:    len(revs),
		Examined:     walk.Examined,
		Truncated:    walk.Truncated,
		Reason:       walk.Reason,
	}, nil
}

// Locate finds a class or method in path at ref. An empty ref reads the
// working tree copy. A file missing at ref yields an unset span, not an
// error.
func (t *Tracker) Locate(ctx context.Context, ref, path, className, functionName string) (*Snapshot, error) {
	rel, err := t.query(path, className, functionName)
	if err != nil {
		return nil, err
	}

	var rev *vcs.Revision
	if ref == "" {
		text, err := os.ReadFile(filepath.Join(t.repo.Root(), filepath.FromSlash(rel)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("simpletrack: read %s: %w", rel, err)
		}
		rev = vcs.NewRevision(worktreeID, rel, text)
	} else {
		rev = t.repo.Revision(ref, rel)
	}

	text, err := rev.Text(ctx)
	if err != nil && !errors.Is(err, vcs.ErrPathNotFound) {
		return nil, fmt.Errorf("simpletrack: read %s at %s: %w", rel, ref, err)
	}
	span := locator.LocateContext(ctx, text, className, functionName)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Snapshot{Revision: rev, Span: span, Code: locator.Extract(text, span)}, nil
}

// query validates a symbol query and returns path relative to the root.
func (t *Tracker) query(path, className, functionName string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrNoPath
	}
	if className == "" && functionName == "" {
		return "", ErrNoSymbol
	}
	rel, err := t.repo.RelPath(path)
	if err != nil {
		return "", fmt.Errorf("simpletrack: %w", err)
	}
	if _, ok := locator.LanguageForFile(rel); !ok {
		t.logger.Warn("file is not Python source, results will be empty", "path", rel)
	}
	return rel, nil
}
