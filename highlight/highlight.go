// Package highlight applies, tracks and removes nugget highlights.
//
// Two strategies satisfy the same Applier contract: Wrapper inserts <mark>
// elements into the tree, Overlay records ranges for a renderer to paint and
// leaves the tree untouched. The strategy is picked once with Select.
package highlight

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"nuggets/logger"
	"nuggets/nugget"
	"nuggets/textindex"
	"nuggets/textrange"
)

// ErrInsertion is returned when a highlight could not be applied cleanly.
// The tree is left as it was before the attempt.
var ErrInsertion = errors.New("highlight insertion failed")

const (
	// Class is the class attribute carried by every mark element.
	Class = "golden-nugget-highlight"
	// KeyAttr holds the nugget identity key on mark elements.
	KeyAttr = "data-golden-nugget-highlight"
	// TypeAttr holds the nugget type on mark elements.
	TypeAttr = "data-nugget-type"
	// HighlightName is the name registered with the CSS highlight registry.
	HighlightName = "golden-nugget"
)

// Selector returns the CSS selector matching the marks for key.
func Selector(key string) string {
	return fmt.Sprintf(`[%s="%s"]`, KeyAttr, key)
}

// Handle is an applied highlight as returned by Apply.
type Handle struct {
	Key   string
	Range *textrange.Range
	// Marks are the inserted elements, Wrapper only.
	Marks []*html.Node
	// Splits lists the text nodes Marks were cut from, Wrapper only.
	Splits []textindex.Split
}

// Applier is a highlighting strategy.
type Applier interface {
	Name() string
	Apply(r *textrange.Range, key string, n nugget.Nugget) (Handle, error)
	Remove(h Handle) error
	// Mutates reports whether Apply changes the tree structure, in which case
	// callers must rebuild their text index afterwards.
	Mutates() bool
}

// Style holds the colours used for highlights.
type Style struct {
	Background string `toml:"background"`
	Border     string `toml:"border"`
	Shadow     string `toml:"shadow"`
}

// DefaultStyle returns the stock yellow highlight.
func DefaultStyle() Style {
	return Style{
		Background: "rgba(255, 215, 0, 0.4)",
		Border:     "1px solid rgba(218, 165, 32, 0.8)",
		Shadow:     "0 0 3px rgba(218, 165, 32, 0.5)",
	}
}

func (s Style) withDefaults() Style {
	def := DefaultStyle()
	if s.Background == "" {
		s.Background = def.Background
	}
	if s.Border == "" {
		s.Border = def.Border
	}
	if s.Shadow == "" {
		s.Shadow = def.Shadow
	}
	return s
}

// Inline returns the inline style for mark elements. Every declaration is
// !important so host page rules cannot hide the highlight.
func (s Style) Inline() string {
	s = s.withDefaults()
	decls := []string{
		"background-color: " + s.Background,
		"border: " + s.Border,
		"box-shadow: " + s.Shadow,
		"border-radius: 2px",
		"padding: 0 1px",
		"color: inherit",
	}
	return strings.Join(decls, " !important; ") + " !important;"
}

// StyleSheet returns CSS rules for both strategies: the mark class and the
// ::highlight pseudo-element, which only accepts colour properties.
func (s Style) StyleSheet() string {
	s = s.withDefaults()
	return fmt.Sprintf("mark.%s { %s }\n::highlight(%s) { background-color: %s; color: inherit; }\n",
		Class, s.Inline(), HighlightName, s.Background)
}

// Capabilities describes what the output surface supports.
type Capabilities struct {
	// HighlightAPI is true when ranges can be painted without touching the
	// tree, as with the CSS Custom Highlight API or the terminal renderer.
	HighlightAPI bool
}

const (
	ModeAuto    = "auto"
	ModeWrap    = "wrap"
	ModeOverlay = "overlay"
)

// Select picks the strategy for mode. "auto" uses Overlay when the surface
// can paint ranges and Wrapper otherwise. Unknown modes behave like "auto".
func Select(mode string, caps Capabilities, style Style) Applier {
	switch strings.ToLower(mode) {
	case ModeWrap:
		return NewWrapper(style)
	case ModeOverlay:
		return NewOverlay(style)
	case ModeAuto, "":
	default:
		logger.Warn("unknown highlight mode %q, using auto", mode)
	}
	if caps.HighlightAPI {
		return NewOverlay(style)
	}
	return NewWrapper(style)
}
