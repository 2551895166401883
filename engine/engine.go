// Package engine runs nuggets through matching, range building and
// highlighting against one page.
package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"nuggets/boundary"
	"nuggets/highlight"
	"nuggets/logger"
	"nuggets/nugget"
	"nuggets/textindex"
	"nuggets/textrange"
)

var (
	// ErrEmptyIndex means the page has no indexable text.
	ErrEmptyIndex = errors.New("page has no visible text")
	// ErrNotFound means no matcher tier located the nugget.
	ErrNotFound = errors.New("nugget not located on page")
	// ErrBlank means a boundary phrase was empty.
	ErrBlank = errors.New("empty boundary phrase")
)

// Outcome is the result of highlighting one nugget.
type Outcome struct {
	Nugget     nugget.Nugget
	Key        string
	Status     nugget.Status
	Strategy   boundary.Strategy
	Confidence float64

	// Err explains a not-found status.
	Err error
}

// Highlighted reports whether the nugget is on the page.
func (o Outcome) Highlighted() bool { return o.Status == nugget.StatusHighlighted }

// Engine highlights nuggets in the tree under root. It is not safe for
// concurrent use.
type Engine struct {
	root     *html.Node
	matcher  *boundary.Matcher
	registry *highlight.Registry
	ix       *textindex.Index
}

// New creates an engine over root. The registry is owned by the caller and
// must belong to the same document; a nil matcher uses the default config.
func New(root *html.Node, registry *highlight.Registry, matcher *boundary.Matcher) *Engine {
	if matcher == nil {
		matcher = boundary.New(boundary.DefaultConfig())
	}
	return &Engine{root: root, matcher: matcher, registry: registry}
}

// Registry returns the registry highlights are tracked in.
func (e *Engine) Registry() *highlight.Registry { return e.registry }

// Index returns the current text index, building it if needed.
func (e *Engine) Index() *textindex.Index {
	if e.ix == nil {
		e.ix = textindex.Build(e.root)
	}
	return e.ix
}

// Refresh discards the text index so the next call re-reads the tree.
func (e *Engine) Refresh() {
	if e.ix != nil {
		e.ix = e.ix.Rebuild()
	}
}

// HighlightNugget highlights a single nugget. It never panics; every failure
// is reported as a not-found outcome.
func (e *Engine) HighlightNugget(n nugget.Nugget) Outcome {
	ix := e.Index()
	if ix.Empty() {
		logger.Warn("%v", ErrEmptyIndex)
		return notFound(n, ErrEmptyIndex)
	}
	return e.highlight(n)
}

// HighlightAll highlights ns in order against one snapshot of the page. One
// nugget failing never stops the rest.
func (e *Engine) HighlightAll(ns []nugget.Nugget) []Outcome {
	e.ix = textindex.Build(e.root)
	out := make([]Outcome, 0, len(ns))

	if e.ix.Empty() {
		logger.Warn("%v, %d nuggets not searched", ErrEmptyIndex, len(ns))
		for _, n := range ns {
			out = append(out, notFound(n, ErrEmptyIndex))
		}
		return out
	}

	for _, n := range ns {
		out = append(out, e.highlight(n))
	}
	return out
}

func notFound(n nugget.Nugget, err error) Outcome {
	return Outcome{Nugget: n, Key: n.Key(), Status: nugget.StatusNotFound, Err: err}
}

func (e *Engine) highlight(n nugget.Nugget) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("highlighting %s panicked: %v", n, p)
			out = notFound(n, fmt.Errorf("%w: %v", highlight.ErrInsertion, p))
		}
	}()

	key := n.Key()
	if entry, ok := e.registry.Get(key); ok {
		return Outcome{
			Nugget:     n,
			Key:        key,
			Status:     nugget.StatusHighlighted,
			Strategy:   entry.Result.Strategy,
			Confidence: entry.Result.Confidence,
		}
	}
	if n.Blank() {
		return notFound(n, ErrBlank)
	}
	if err := n.Validate(); err != nil {
		return notFound(n, err)
	}

	res := e.matcher.Match(e.ix, n.StartContent, n.EndContent)
	if !res.Found {
		logger.Debug("no match for %s", n)
		return notFound(n, ErrNotFound)
	}

	r, err := textrange.Build(e.ix, res.Start, res.End)
	if err != nil {
		logger.Warn("range for %s: %v", n, err)
		return notFound(n, err)
	}

	applier := e.registry.Applier()
	h, err := applier.Apply(r, key, n)
	if err != nil {
		logger.Warn("apply %s: %v", n, err)
		return notFound(n, err)
	}
	if applier.Mutates() {
		e.resplit(n, h)
	}
	e.register(&highlight.Entry{Key: key, Nugget: n, Handle: h, Range: r, Result: res})

	logger.Debug("highlighted %s via %s (%.2f)", n, res.Strategy, res.Confidence)
	return Outcome{
		Nugget:     n,
		Key:        key,
		Status:     nugget.StatusHighlighted,
		Strategy:   res.Strategy,
		Confidence: res.Confidence,
	}
}

// register records entry, undoing its highlight when the key is already
// taken so the tree never holds marks the registry does not know about.
func (e *Engine) register(entry *highlight.Entry) bool {
	if e.registry.Register(entry) {
		return true
	}
	logger.Warn("%s already registered, removing duplicate highlight", entry.Nugget)
	applier := e.registry.Applier()
	if err := applier.Remove(entry.Handle); err != nil {
		logger.Warn("removing duplicate %s: %v", entry.Nugget, err)
	}
	if applier.Mutates() {
		e.ix = e.ix.Rebuild()
	}
	return false
}

// resplit moves the index onto the text nodes h was cut into. The buffer
// stays the same, so later nuggets in the batch see the original text.
func (e *Engine) resplit(n nugget.Nugget, h highlight.Handle) {
	if next, ok := e.ix.Resplit(h.Splits); ok {
		e.ix = next
		return
	}
	before := len(e.ix.Buffer)
	e.ix = e.ix.Rebuild()
	logger.Warn("index out of step after highlighting %s, re-read %d -> %d bytes", n, before, len(e.ix.Buffer))
}

// Clear removes every highlight and re-reads the tree.
func (e *Engine) Clear() error {
	err := e.registry.ClearAll()
	e.Refresh()
	if err != nil {
		return fmt.Errorf("clearing highlights: %w", err)
	}
	return nil
}

// ScrollTo brings the highlight for key into view.
func (e *Engine) ScrollTo(ctx context.Context, key string) bool {
	return e.registry.ScrollTo(ctx, key)
}
