package highlight

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"nuggets/logger"
	"nuggets/nugget"
	"nuggets/textindex"
	"nuggets/textrange"
)

// Wrapper highlights by wrapping text in <mark> elements. A range crossing
// element boundaries is wrapped one text segment at a time, so no element is
// split or moved and the text content of the tree never changes.
type Wrapper struct {
	style Style
}

// NewWrapper creates a wrapping applier.
func NewWrapper(style Style) *Wrapper {
	return &Wrapper{style: style.withDefaults()}
}

func (w *Wrapper) Name() string  { return ModeWrap }
func (w *Wrapper) Mutates() bool { return true }

// undoLog records inverse operations so a failed apply can be rolled back.
type undoLog []func()

func (u *undoLog) push(f func()) { *u = append(*u, f) }

func (u *undoLog) rollback() {
	for i := len(*u) - 1; i >= 0; i-- {
		(*u)[i]()
	}
	*u = nil
}

// Apply wraps every segment of r. All segments are checked before the tree
// is touched; if mutation still fails part way, the changes made so far are
// undone and ErrInsertion is returned.
func (w *Wrapper) Apply(r *textrange.Range, key string, n nugget.Nugget) (h Handle, err error) {
	if r == nil || r.Collapsed() {
		return Handle{}, fmt.Errorf("%w: empty range", ErrInsertion)
	}

	var plan []textrange.Segment
	for _, s := range r.Segments() {
		if s.From >= s.To {
			continue
		}
		if s.Node.Type != html.TextNode || s.Node.Parent == nil || s.From < 0 || s.To > len(s.Node.Data) {
			return Handle{}, fmt.Errorf("%w: segment no longer in tree", ErrInsertion)
		}
		plan = append(plan, s)
	}
	if len(plan) == 0 {
		return Handle{}, fmt.Errorf("%w: nothing to wrap", ErrInsertion)
	}

	var undo undoLog
	defer func() {
		if p := recover(); p != nil {
			undo.rollback()
			logger.Warn("highlight %s rolled back: %v", key, p)
			h, err = Handle{}, fmt.Errorf("%w: %v", ErrInsertion, p)
		}
	}()

	marks := make([]*html.Node, 0, len(plan))
	splits := make([]textindex.Split, 0, len(plan))
	for i, s := range plan {
		part := -1
		if len(plan) > 1 {
			part = i
		}
		mark, split := w.wrap(&undo, s, w.newMark(key, n, part))
		marks = append(marks, mark)
		splits = append(splits, split)
	}
	return Handle{Key: key, Range: r, Marks: marks, Splits: splits}, nil
}

// wrap isolates s into its own text node and moves it into mark. The split
// lists the pieces the original node was cut into.
func (w *Wrapper) wrap(undo *undoLog, s textrange.Segment, mark *html.Node) (*html.Node, textindex.Split) {
	node := s.Node
	parent := node.Parent
	var head, tail *html.Node

	if s.To < len(node.Data) {
		tail = &html.Node{Type: html.TextNode, Data: node.Data[s.To:]}
		parent.InsertBefore(tail, node.NextSibling)
		node.Data = node.Data[:s.To]
		undo.push(func() {
			node.Data += tail.Data
			parent.RemoveChild(tail)
		})
	}
	if s.From > 0 {
		head = &html.Node{Type: html.TextNode, Data: node.Data[:s.From]}
		parent.InsertBefore(head, node)
		node.Data = node.Data[s.From:]
		undo.push(func() {
			node.Data = head.Data + node.Data
			parent.RemoveChild(head)
		})
	}

	parent.InsertBefore(mark, node)
	parent.RemoveChild(node)
	mark.AppendChild(node)
	undo.push(func() {
		mark.RemoveChild(node)
		parent.InsertBefore(node, mark)
		parent.RemoveChild(mark)
	})

	split := textindex.Split{Node: node}
	if head != nil {
		split.Parts = append(split.Parts, head)
	}
	split.Parts = append(split.Parts, node)
	if tail != nil {
		split.Parts = append(split.Parts, tail)
	}
	return mark, split
}

func (w *Wrapper) newMark(key string, n nugget.Nugget, part int) *html.Node {
	attrs := []html.Attribute{
		{Key: "class", Val: Class},
		{Key: KeyAttr, Val: key},
		{Key: TypeAttr, Val: n.Type.String()},
		{Key: "style", Val: w.style.Inline()},
	}
	if part >= 0 {
		attrs = append(attrs, html.Attribute{Key: KeyAttr + "-part", Val: strconv.Itoa(part)})
	}
	return &html.Node{Type: html.ElementNode, Data: "mark", DataAtom: atom.Mark, Attr: attrs}
}

// Remove unwraps the marks of h. Marks already detached are skipped.
func (w *Wrapper) Remove(h Handle) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("removing highlight %s: %v", h.Key, p)
		}
	}()
	for i := len(h.Marks) - 1; i >= 0; i-- {
		unwrapMark(h.Marks[i])
	}
	return nil
}

// StyleSheet returns the class rule for marks.
func (w *Wrapper) StyleSheet() string { return w.style.StyleSheet() }

func unwrapMark(mark *html.Node) {
	parent := mark.Parent
	if parent == nil {
		return
	}
	for c := mark.FirstChild; c != nil; c = mark.FirstChild {
		mark.RemoveChild(c)
		parent.InsertBefore(c, mark)
	}
	parent.RemoveChild(mark)
	mergeText(parent)
}

// mergeText joins adjacent text children of n, undoing the splits made
// by wrap.
func mergeText(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		}
		c = next
	}
}

// Unwrap removes every highlight mark under root, whichever registry
// created it, and returns how many were removed.
func Unwrap(root *html.Node) (int, error) {
	if root == nil {
		return 0, errors.New("unwrap: nil root")
	}
	var marks []*html.Node
	goquery.NewDocumentFromNode(root).Find("[" + KeyAttr + "]").Each(func(_ int, s *goquery.Selection) {
		marks = append(marks, s.Get(0))
	})
	for _, m := range marks {
		unwrapMark(m)
	}
	return len(marks), nil
}
