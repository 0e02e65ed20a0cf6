// Package simpletrack reports how one Python class or method evolved over a
// file's git history.
//
// # Pipeline
//
// A history query runs in three steps:
//
//  1. Enumerate: list the commits that touched the file, newest first by
//     default.
//  2. Walk: starting from the first revision, locate the symbol with
//     tree-sitter, then for each later revision ask a differ whether the
//     change touched the symbol's current line span. Only touched revisions
//     are parsed again.
//  3. Collect: emit a snapshot each time the symbol's text differs from the
//     last one emitted, including a snapshot with an unset span when the
//     symbol disappears.
//
// # Usage
//
//	t, err := simpletrack.New(ctx, "path/to/repo")
//	if err != nil { ... }
//
//	res, err := t.History(ctx, "pkg/models.py", "User", "save")
//	for _, s := range res.Snapshots {
//		fmt.Println(s.Revision.ShortID(), s.Span.StartLine, s.Span.EndLine)
//	}
//
// A walk is bounded by a wall-clock budget ([WithTimeout]) and a snapshot
// cap ([WithMaxSnapshots]). Hitting either returns the snapshots collected
// so far with [Result.Truncated] set; it is not an error.
//
// # Symbols
//
// A class name alone selects the first class of that name. A function name
// selects the first function of that name whose enclosing class is exactly
// the given class name, so an empty class name matches module-level
// functions only. Nested functions are not searched.
package simpletrack
