// Package history walks a file's revisions and collects the distinct
// versions of one class or function.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/captainhcg/SimpleTrack/internal/diff"
	"github.com/captainhcg/SimpleTrack/internal/locator"
	"github.com/captainhcg/SimpleTrack/internal/slogutil"
	"github.com/captainhcg/SimpleTrack/internal/vcs"
)

const (
	// DefaultTimeout is the wall-clock budget of one walk.
	DefaultTimeout = 3 * time.Second
	// DefaultMaxSnapshots caps the number of snapshots one walk emits.
	DefaultMaxSnapshots = 20
)

// Snapshot is one distinct version of the tracked symbol.
type Snapshot struct {
	Revision *vcs.Revision
	Span     locator.Span
	// Code is the text of Span's lines at Revision; empty when the span is
	// unset.
	Code string
}

// sameContent reports whether two snapshots carry the same symbol text.
// Two unset snapshots are the same.
func (s Snapshot) sameContent(o Snapshot) bool {
	return s.Span.Found() == o.Span.Found() && s.Code == o.Code
}

// StopReason says why a walk ended.
type StopReason string

const (
	StopExhausted    StopReason = "exhausted"
	StopTimeout      StopReason = "timeout"
	StopMaxSnapshots StopReason = "max_snapshots"
)

// Result is the outcome of a walk. A truncated result is a consistent prefix
// of the full history.
type Result struct {
	Snapshots []Snapshot
	Truncated bool
	Reason    StopReason
	// Examined is the number of revisions visited.
	Examined int
}

// Walker runs history walks. It holds configuration only, so one Walker may
// serve concurrent walks.
type Walker struct {
	differ       diff.Differ
	timeout      time.Duration
	maxSnapshots int
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithTimeout sets the wall-clock budget. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(w *Walker) { w.timeout = d }
}

// WithMaxSnapshots caps emitted snapshots. Zero or negative disables the cap.
func WithMaxSnapshots(n int) Option {
	return func(w *Walker) { w.maxSnapshots = n }
}

// WithLogger sets the logger for walk decisions.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Walker) { w.now = now }
}

// NewWalker creates a Walker that detects changes with d.
func NewWalker(d diff.Differ, opts ...Option) *Walker {
	w := &Walker{
		differ:       d,
		timeout:      DefaultTimeout,
		maxSnapshots: DefaultMaxSnapshots,
		logger:       slogutil.NewDiscardLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk visits revs in the given order and returns the distinct versions of
// the symbol. The first revision always yields a snapshot, even when the
// symbol is absent there. After that, a revision is only re-parsed when its
// diff against the tracked revision touches the tracked span, and only
// yields a snapshot when the symbol's text differs from the last one.
//
// The walk stops early, without error, when the time budget is spent or the
// snapshot cap is reached. Git failures abort it.
func (w *Walker) Walk(ctx context.Context, revs []*vcs.Revision, className, functionName string) (*Result, error) {
	start := w.now()
	res := &Result{Reason: StopExhausted}

	var (
		tracked *vcs.Revision
		span    locator.Span
		last    Snapshot
	)
	for i, rev := range revs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.timeout > 0 && w.now().Sub(start) > w.timeout {
			res.Truncated, res.Reason = true, StopTimeout
			w.logger.Debug("history: time budget spent", "examined", res.Examined, "remaining", len(revs)-i)
			break
		}
		res.Examined++

		if tracked != nil {
			hunks, err := w.differ.Hunks(ctx, tracked, rev)
			if err != nil {
				return nil, fmt.Errorf("history: diff %s..%s: %w", tracked.ShortID(), rev.ShortID(), err)
			}
			if !diff.Touches(hunks, span) {
				span = diff.Shift(hunks, span)
				tracked = rev
				w.logger.Debug("history: span untouched", "rev", rev.ShortID(), "start", span.StartLine, "end", span.EndLine)
				continue
			}
		}

		snap, err := w.snapshot(ctx, rev, className, functionName)
		if err != nil {
			return nil, err
		}
		tracked, span = rev, snap.Span
		if len(res.Snapshots) > 0 && snap.sameContent(last) {
			w.logger.Debug("history: span moved, text unchanged", "rev", rev.ShortID())
			continue
		}
		res.Snapshots = append(res.Snapshots, snap)
		last = snap
		w.logger.Debug("history: snapshot", "rev", rev.ShortID(), "found", snap.Span.Found(),
			"start", snap.Span.StartLine, "end", snap.Span.EndLine)

		if w.maxSnapshots > 0 && len(res.Snapshots) >= w.maxSnapshots {
			if i < len(revs)-1 {
				res.Truncated, res.Reason = true, StopMaxSnapshots
			}
			break
		}
	}
	return res, nil
}

// snapshot locates the symbol in rev. A path missing at rev reads as an
// empty file.
func (w *Walker) snapshot(ctx context.Context, rev *vcs.Revision, className, functionName string) (Snapshot, error) {
	text, err := rev.Text(ctx)
	if errors.Is(err, vcs.ErrPathNotFound) {
		w.logger.Debug("history: path absent", "rev", rev.ShortID(), "path", rev.Path)
		text, err = nil, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("history: read %s at %s: %w", rev.Path, rev.ShortID(), err)
	}

	span := locator.LocateContext(ctx, text, className, functionName)
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Revision: rev, Span: span, Code: locator.Extract(text, span)}, nil
}
