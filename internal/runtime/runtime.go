// Package runtime embeds a Risor VM for user-supplied snapshot filter
// expressions, such as
//
//	author == "alice" && end_line - start_line > 20
//
// Each snapshot is exposed to the expression through these globals:
//
//	hash, short_hash, author, date, subject   revision metadata (strings)
//	start_line, end_line, lines               span (ints, 0 when unset)
//	class_name, code                          strings
//	found                                     bool
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"github.com/captainhcg/SimpleTrack/internal/history"
	"github.com/captainhcg/SimpleTrack/internal/slogutil"
)

// ErrEmptyExpression is returned by NewFilter for a blank expression.
var ErrEmptyExpression = errors.New("runtime: empty filter expression")

// Runtime evaluates Risor source with a set of globals.
type Runtime struct {
	logger *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger used for evaluation tracing.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{logger: slogutil.NewDiscardLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Eval runs source with the given globals and returns its result.
func (r *Runtime) Eval(ctx context.Context, source, label string, globals map[string]any) (object.Object, error) {
	opts := make([]risor.Option, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		r.logger.Debug("risor eval failed", "label", label, "error", err)
		return nil, fmt.Errorf("runtime: %s: %w", label, err)
	}
	return result, nil
}

// SnapshotGlobals builds the globals describing one snapshot.
func SnapshotGlobals(s history.Snapshot) map[string]any {
	g := map[string]any{
		"hash":       object.NewString(""),
		"short_hash": object.NewString(""),
		"author":     object.NewString(""),
		"date":       object.NewString(""),
		"subject":    object.NewString(""),
		"start_line": object.NewInt(0),
		"end_line":   object.NewInt(0),
		"lines":      object.NewInt(int64(s.Span.Lines())),
		"class_name": object.NewString(s.Span.ClassName),
		"code":       object.NewString(s.Code),
		"found":      object.NewBool(s.Span.Found()),
	}
	if s.Span.Found() {
		g["start_line"] = object.NewInt(int64(s.Span.StartLine))
		g["end_line"] = object.NewInt(int64(s.Span.EndLine))
	}
	if rev := s.Revision; rev != nil {
		g["hash"] = object.NewString(rev.ID)
		g["short_hash"] = object.NewString(rev.ShortID())
		g["author"] = object.NewString(rev.Author)
		g["date"] = object.NewString(rev.Date)
		g["subject"] = object.NewString(rev.Subject)
	}
	return g
}
