package highlight

import (
	"context"
	"errors"
	"fmt"

	"nuggets/boundary"
	"nuggets/logger"
	"nuggets/nugget"
	"nuggets/textrange"
)

// Viewport scrolls a live document.
type Viewport interface {
	ScrollIntoView(ctx context.Context, selector string) error
}

// NopViewport is used when there is nothing to scroll.
type NopViewport struct{}

func (NopViewport) ScrollIntoView(context.Context, string) error { return nil }

// Entry is a registered highlight.
type Entry struct {
	Key    string
	Nugget nugget.Nugget
	Handle Handle
	Range  *textrange.Range
	Result boundary.Result
}

// Registry tracks the highlights applied to one page. A registry belongs to
// a single document and is not safe for concurrent use.
type Registry struct {
	applier  Applier
	viewport Viewport
	entries  map[string]*Entry
	order    []string
}

// NewRegistry creates an empty registry. A nil viewport means NopViewport.
func NewRegistry(applier Applier, viewport Viewport) *Registry {
	if viewport == nil {
		viewport = NopViewport{}
	}
	return &Registry{
		applier:  applier,
		viewport: viewport,
		entries:  make(map[string]*Entry),
	}
}

// Applier returns the strategy the registry removes highlights with.
func (r *Registry) Applier() Applier { return r.applier }

func (r *Registry) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

func (r *Registry) Get(key string) (*Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Register adds e. It returns false, leaving the registry unchanged, when
// the key is already present.
func (r *Registry) Register(e *Entry) bool {
	if e == nil || r.Has(e.Key) {
		return false
	}
	r.entries[e.Key] = e
	r.order = append(r.order, e.Key)
	return true
}

func (r *Registry) Len() int { return len(r.order) }

// Entries returns the entries in registration order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// ClearAll removes every highlight, newest first, so nested marks unwind in
// the reverse of the order they were created. The registry is emptied even
// when a removal fails.
func (r *Registry) ClearAll() error {
	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.entries[r.order[i]]
		if err := r.applier.Remove(e.Handle); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s: %w", e.Key, err))
		}
	}
	r.entries = make(map[string]*Entry)
	r.order = nil
	return errors.Join(errs...)
}

// ScrollTo brings the highlight for key into view. Unknown keys and viewport
// errors are logged and reported as false.
func (r *Registry) ScrollTo(ctx context.Context, key string) bool {
	if !r.Has(key) {
		logger.Warn("scroll: no highlight registered for %s", key)
		return false
	}
	if err := r.viewport.ScrollIntoView(ctx, Selector(key)); err != nil {
		logger.Warn("scroll to %s: %v", key, err)
		return false
	}
	return true
}
