package highlight

import (
	"fmt"

	"nuggets/nugget"
	"nuggets/textrange"
)

// Painted is a range recorded by Overlay.
type Painted struct {
	Key   string
	Type  nugget.Type
	Range *textrange.Range
}

// Overlay keeps highlight ranges beside the tree without modifying it, the
// way the CSS Custom Highlight API does. Renderers read them with Ranges.
type Overlay struct {
	style  Style
	ranges map[string]Painted
	order  []string
}

// NewOverlay creates an overlay applier.
func NewOverlay(style Style) *Overlay {
	return &Overlay{
		style:  style.withDefaults(),
		ranges: make(map[string]Painted),
	}
}

func (o *Overlay) Name() string  { return ModeOverlay }
func (o *Overlay) Mutates() bool { return false }

func (o *Overlay) Apply(r *textrange.Range, key string, n nugget.Nugget) (Handle, error) {
	if r == nil || r.Collapsed() {
		return Handle{}, fmt.Errorf("%w: empty range", ErrInsertion)
	}
	if p, ok := o.ranges[key]; ok {
		return Handle{Key: key, Range: p.Range}, nil
	}
	o.ranges[key] = Painted{Key: key, Type: n.Type, Range: r}
	o.order = append(o.order, key)
	return Handle{Key: key, Range: r}, nil
}

func (o *Overlay) Remove(h Handle) error {
	if _, ok := o.ranges[h.Key]; !ok {
		return nil
	}
	delete(o.ranges, h.Key)
	for i, k := range o.order {
		if k == h.Key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return nil
}

// Ranges returns the painted ranges in the order they were applied.
func (o *Overlay) Ranges() []Painted {
	out := make([]Painted, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.ranges[k])
	}
	return out
}

// StyleSheet returns the rules a page needs to paint the overlay.
func (o *Overlay) StyleSheet() string { return o.style.StyleSheet() }
