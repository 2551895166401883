// Package textrange turns buffer offsets from a textindex into a DOM range
// anchored on text nodes.
package textrange

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"nuggets/textindex"
)

// ErrOutOfRange is returned when an offset falls outside every span, or the
// index no longer matches the tree.
var ErrOutOfRange = errors.New("offset outside indexed text")

// Segment is the part of one text node covered by a range.
type Segment struct {
	Node     *html.Node
	From, To int
}

// Text returns the covered text.
func (s Segment) Text() string { return s.Node.Data[s.From:s.To] }

// Whole reports whether the segment covers its node entirely.
func (s Segment) Whole() bool { return s.From == 0 && s.To == len(s.Node.Data) }

// Range spans from (StartNode, StartOffset) to (EndNode, EndOffset). Offsets
// are byte offsets into the text nodes' Data.
type Range struct {
	StartNode   *html.Node
	StartOffset int
	EndNode     *html.Node
	EndOffset   int

	start, end int
	segments   []Segment
}

// Build maps the buffer range [start, end) onto the spans of ix.
func Build(ix *textindex.Index, start, end int) (*Range, error) {
	if ix == nil || ix.Empty() {
		return nil, fmt.Errorf("%w: empty index", ErrOutOfRange)
	}
	if start < 0 || end > len(ix.Buffer) || start >= end {
		return nil, fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, start, end, len(ix.Buffer))
	}

	first, startOff, ok := ix.Locate(start, false)
	if !ok {
		return nil, fmt.Errorf("%w: start %d", ErrOutOfRange, start)
	}
	last, endOff, ok := ix.Locate(end, true)
	if !ok {
		return nil, fmt.Errorf("%w: end %d", ErrOutOfRange, end)
	}

	r := &Range{
		StartNode:   first.Node,
		StartOffset: startOff,
		EndNode:     last.Node,
		EndOffset:   endOff,
		start:       start,
		end:         end,
	}

	i := sort.Search(len(ix.Spans), func(i int) bool { return ix.Spans[i].End > start })
	for ; i < len(ix.Spans) && ix.Spans[i].Start < end; i++ {
		span := ix.Spans[i]
		if span.Node.Type != html.TextNode || len(span.Node.Data) != span.Len() {
			return nil, fmt.Errorf("%w: stale span at %d", ErrOutOfRange, span.Start)
		}
		from := max(start, span.Start) - span.Start
		to := min(end, span.End) - span.Start
		r.segments = append(r.segments, Segment{Node: span.Node, From: from, To: to})
	}
	if len(r.segments) == 0 {
		return nil, fmt.Errorf("%w: no spans in [%d,%d)", ErrOutOfRange, start, end)
	}
	return r, nil
}

// Offsets returns the buffer range the range was built from.
func (r *Range) Offsets() (int, int) { return r.start, r.end }

// Text returns the text covered by the range.
func (r *Range) Text() string {
	var sb strings.Builder
	for _, s := range r.segments {
		sb.WriteString(s.Text())
	}
	return sb.String()
}

// Collapsed reports whether the range is empty.
func (r *Range) Collapsed() bool {
	return r.StartNode == r.EndNode && r.StartOffset == r.EndOffset
}

// SingleNode reports whether the range lies within one text node.
func (r *Range) SingleNode() bool { return r.StartNode == r.EndNode }

// Segments returns the per-node pieces in document order.
func (r *Range) Segments() []Segment {
	out := make([]Segment, len(r.segments))
	copy(out, r.segments)
	return out
}
