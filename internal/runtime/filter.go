package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/captainhcg/SimpleTrack/internal/history"
)

// Filter keeps the snapshots for which a Risor expression is truthy.
type Filter struct {
	rt   *Runtime
	expr string
}

// NewFilter prepares expr. The expression is dry-run against an empty
// snapshot so syntax errors surface here rather than per snapshot.
func NewFilter(ctx context.Context, rt *Runtime, expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	if rt == nil {
		rt = NewRuntime()
	}
	f := &Filter{rt: rt, expr: expr}
	if _, err := f.Match(ctx, history.Snapshot{}); err != nil {
		return nil, err
	}
	return f, nil
}

// Expr returns the filter's source.
func (f *Filter) Expr() string {
	return f.expr
}

// Match reports whether s satisfies the expression.
func (f *Filter) Match(ctx context.Context, s history.Snapshot) (bool, error) {
	result, err := f.rt.Eval(ctx, f.expr, "filter", SnapshotGlobals(s))
	if err != nil {
		return false, err
	}
	return result != nil && result.IsTruthy(), nil
}

// Apply returns the snapshots that match, in order.
func (f *Filter) Apply(ctx context.Context, snaps []history.Snapshot) ([]history.Snapshot, error) {
	kept := make([]history.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		ok, err := f.Match(ctx, s)
		if err != nil {
			id := "?"
			if s.Revision != nil {
				id = s.Revision.ShortID()
			}
			return nil, fmt.Errorf("runtime: filter %s: %w", id, err)
		}
		if ok {
			kept = append(kept, s)
		}
	}
	f.rt.logger.Debug("filter applied", "expr", f.expr, "in", len(snaps), "kept", len(kept))
	return kept, nil
}
