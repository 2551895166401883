// Package textindex flattens the visible text of an HTML tree into a single
// buffer with a table mapping buffer offsets back to text nodes.
package textindex

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"nuggets/normalize"
)

// Span records the buffer range covered by one text node.
type Span struct {
	Node       *html.Node
	Start, End int
}

// Len returns the number of buffer bytes in the span.
func (s Span) Len() int { return s.End - s.Start }

// Index is a snapshot of the eligible text under Root.
// Spans are sorted, contiguous and cover Buffer without gaps.
type Index struct {
	Root   *html.Node
	Buffer string
	Spans  []Span

	mapped map[normalize.Level]normalize.Mapped
}

// Build walks the text nodes under root in document order. Text inside
// script, style, noscript and template elements, inside hidden elements, and
// whitespace-only text is skipped. The tree is not modified.
func Build(root *html.Node) *Index {
	ix := &Index{Root: root}
	if root == nil {
		return ix
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				return
			}
			start := sb.Len()
			sb.WriteString(n.Data)
			ix.Spans = append(ix.Spans, Span{Node: n, Start: start, End: sb.Len()})
			return
		case html.ElementNode:
			if skipElement(n) {
				return
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if root.Type == html.TextNode {
		walk(root)
	} else if root.Type != html.ElementNode || !skipElement(root) {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	ix.Buffer = sb.String()
	return ix
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the index holds no text.
func (ix *Index) Empty() bool { return len(ix.Spans) == 0 }

// Rebuild re-walks Root. Normalized buffers are kept when the text is
// unchanged, which is the case after wrapping highlights.
func (ix *Index) Rebuild() *Index {
	next := Build(ix.Root)
	if next.Buffer == ix.Buffer {
		next.mapped = ix.mapped
	}
	return next
}

// Split records a text node cut into Parts, in document order. The parts'
// data joined is the node's text before the cut.
type Split struct {
	Node  *html.Node
	Parts []*html.Node
}

// Resplit returns an index over the same buffer with each split node's span
// replaced by one span per part. Parts are kept even when they hold only
// whitespace, so offsets into ix stay valid. It reports false when a split
// node is not indexed or its parts do not add up to its span.
func (ix *Index) Resplit(splits []Split) (*Index, bool) {
	if len(splits) == 0 {
		return ix, true
	}
	parts := make(map[*html.Node][]*html.Node, len(splits))
	for _, s := range splits {
		parts[s.Node] = s.Parts
	}

	next := &Index{Root: ix.Root, Buffer: ix.Buffer, mapped: ix.mapped}
	next.Spans = make([]Span, 0, len(ix.Spans)+2*len(splits))
	for _, span := range ix.Spans {
		ps, ok := parts[span.Node]
		if !ok {
			next.Spans = append(next.Spans, span)
			continue
		}
		delete(parts, span.Node)
		pos := span.Start
		for _, p := range ps {
			if p.Type != html.TextNode {
				return nil, false
			}
			next.Spans = append(next.Spans, Span{Node: p, Start: pos, End: pos + len(p.Data)})
			pos += len(p.Data)
		}
		if pos != span.End {
			return nil, false
		}
	}
	if len(parts) > 0 {
		return nil, false
	}
	return next, true
}

// Mapped returns Buffer normalized at level, computed once per index.
func (ix *Index) Mapped(level normalize.Level) normalize.Mapped {
	if m, ok := ix.mapped[level]; ok {
		return m
	}
	if ix.mapped == nil {
		ix.mapped = make(map[normalize.Level]normalize.Mapped)
	}
	m := normalize.Map(level, ix.Buffer)
	ix.mapped[level] = m
	return m
}

// Locate finds the span holding buffer offset off and the local offset
// inside that span's node. With preferEnd, an offset on a span boundary
// resolves to the end of the earlier span, which is what a range end wants.
func (ix *Index) Locate(off int, preferEnd bool) (Span, int, bool) {
	if off < 0 || off > len(ix.Buffer) || len(ix.Spans) == 0 {
		return Span{}, 0, false
	}
	var i int
	if preferEnd {
		i = sort.Search(len(ix.Spans), func(i int) bool { return ix.Spans[i].End >= off })
	} else {
		i = sort.Search(len(ix.Spans), func(i int) bool { return ix.Spans[i].End > off })
	}
	if i >= len(ix.Spans) {
		return Span{}, 0, false
	}
	span := ix.Spans[i]
	if off < span.Start || off > span.End {
		return Span{}, 0, false
	}
	return span, off - span.Start, true
}

// SpanRange returns the buffer range covered by text under element n.
func (ix *Index) SpanRange(n *html.Node) (int, int, bool) {
	first, last := -1, -1
	for i, s := range ix.Spans {
		if contains(n, s.Node) {
			if first < 0 {
				first = i
			}
			last = i
		} else if first >= 0 {
			break
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return ix.Spans[first].Start, ix.Spans[last].End, true
}

// Text returns the buffer slice [start, end).
func (ix *Index) Text(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(ix.Buffer) {
		end = len(ix.Buffer)
	}
	if start >= end {
		return ""
	}
	return ix.Buffer[start:end]
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
