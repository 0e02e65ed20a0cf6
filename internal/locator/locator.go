// Package locator finds the line span of a named Python class or function
// inside one version of a source file.
package locator

import (
	"bytes"
	"context"
	"math"

	sitter "github.com/smacker/go-tree-sitter"
)

// unmarked is the depth of a line on which no syntax node starts.
const unmarked = math.MaxInt

// Span is the located boundary of a symbol. Lines are 1-based and inclusive.
// A zero Span means the symbol was not found (or the source did not parse).
type Span struct {
	StartLine int
	EndLine   int
	// ClassName is the class enclosing a located method. Empty for free
	// functions and for class matches.
	ClassName string
}

// Found reports whether the span is set.
func (s Span) Found() bool {
	return s.StartLine > 0 && s.EndLine >= s.StartLine
}

// Lines returns the number of lines covered, or 0 for an unset span.
func (s Span) Lines() int {
	if !s.Found() {
		return 0
	}
	return s.EndLine - s.StartLine + 1
}

// Extract returns the text of the span's lines from src, line terminators
// included. An unset span, or one outside src, yields "".
func Extract(src []byte, s Span) string {
	if !s.Found() {
		return ""
	}
	lines := splitLines(src)
	if s.EndLine > len(lines) {
		return ""
	}
	return string(bytes.Join(lines[s.StartLine-1:s.EndLine], nil))
}

// Locate returns the span of the requested symbol in src.
//
// With only className set, the first class of that name (depth-first, in
// source order) is matched. With functionName set, the first function of
// that name whose innermost enclosing class equals className is matched; an
// empty className therefore only matches module-level functions. Function
// bodies are never searched.
func Locate(src []byte, className, functionName string) Span {
	return LocateContext(context.Background(), src, className, functionName)
}

// LocateContext is Locate with a cancellable parse. Cancellation yields an
// unset span like any other parse failure.
func LocateContext(ctx context.Context, src []byte, className, functionName string) Span {
	if len(src) == 0 || (className == "" && functionName == "") {
		return Span{}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(pythonGrammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return Span{}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return Span{}
	}

	lines := splitLines(src)
	depths := make([]int, len(lines))
	for i := range depths {
		depths[i] = unmarked
	}
	markDepths(root, frame{}, depths)

	q := query{class: className, function: functionName, src: src}
	m, ok := q.search(root, frame{})
	if !ok {
		return Span{}
	}

	start := int(m.name.StartPoint().Row) + 1
	return Span{
		StartLine: start,
		EndLine:   lastLine(depths, lines, start, m.depth),
		ClassName: m.class,
	}
}

// frame is the immutable traversal context handed to each child.
type frame struct {
	depth int
	// statement is true for direct children of a module or block.
	statement bool
	class     string
}

// child returns the frame for the children of n, where f is n's own frame.
// Everything inside a statement sits one level below it, so a statement's
// continuation lines and its body are both nested within it. Decorators do
// not add a level.
func (f frame) child(n *sitter.Node) frame {
	switch n.Type() {
	case "module", "block":
		return frame{depth: f.depth, statement: true, class: f.class}
	case "decorated_definition":
		return f
	}
	if f.statement {
		return frame{depth: f.depth + 1, class: f.class}
	}
	return frame{depth: f.depth, class: f.class}
}

// markDepths records, per row, the minimum depth of any node starting there.
// The first (outermost) construct on a row wins.
func markDepths(n *sitter.Node, f frame, depths []int) {
	row := int(n.StartPoint().Row)
	if row < len(depths) && f.depth < depths[row] {
		depths[row] = f.depth
	}
	cf := f.child(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			markDepths(c, cf, depths)
		}
	}
}

type query struct {
	class    string
	function string
	src      []byte
}

type match struct {
	name  *sitter.Node
	depth int
	class string
}

// search walks n depth-first in source order and returns the first
// definition matching q.
func (q query) search(n *sitter.Node, f frame) (match, bool) {
	cf := f.child(n)

	switch n.Type() {
	case "class_definition":
		name := n.ChildByFieldName("name")
		if name == nil {
			return match{}, false
		}
		className := name.Content(q.src)
		if q.function == "" && className == q.class {
			return match{name: name, depth: f.depth}, true
		}
		cf.class = className
	case "function_definition":
		if q.function == "" || f.class != q.class {
			return match{}, false
		}
		name := n.ChildByFieldName("name")
		if name != nil && name.Content(q.src) == q.function {
			return match{name: name, depth: f.depth, class: f.class}, true
		}
		return match{}, false
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if m, ok := q.search(c, cf); ok {
			return m, true
		}
	}
	return match{}, false
}

// lastLine extends a definition starting at line start (1-based) while the
// following lines are nested deeper than depth, then trims trailing blank
// lines.
func lastLine(depths []int, lines [][]byte, start, depth int) int {
	end := start
	for line := start + 1; line <= len(depths); line++ {
		if depths[line-1] <= depth {
			break
		}
		end = line
	}
	for end > start && len(bytes.TrimSpace(lines[end-1])) == 0 {
		end--
	}
	return end
}

// splitLines splits src after each '\n', dropping the empty remainder that
// follows a trailing newline.
func splitLines(src []byte) [][]byte {
	lines := bytes.SplitAfter(src, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}
	return lines
}
