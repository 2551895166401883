// Package nugget defines the extracted insight records consumed by the
// highlighting engine.
package nugget

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"nuggets/normalize"
)

// ErrUnknownType is returned for a type outside the fixed enumeration.
var ErrUnknownType = errors.New("unknown nugget type")

// Type is the kind of insight a nugget carries.
type Type int

const (
	TypeTool Type = iota + 1
	TypeMedia
	TypeAhaMoment
	TypeAnalogy
	TypeModel
)

var typeNames = map[Type]string{
	TypeTool:      "tool",
	TypeMedia:     "media",
	TypeAhaMoment: "aha! moments",
	TypeAnalogy:   "analogy",
	TypeModel:     "model",
}

var typeLabels = map[Type]string{
	TypeTool:      "Tool",
	TypeMedia:     "Media",
	TypeAhaMoment: "Aha! moment",
	TypeAnalogy:   "Analogy",
	TypeModel:     "Mental model",
}

// Types lists every valid type in display order.
var Types = []Type{TypeTool, TypeMedia, TypeAhaMoment, TypeAnalogy, TypeModel}

// ParseType accepts the canonical names plus the spellings models commonly
// produce ("aha-moment", "Aha! Moment", "mental model").
func ParseType(s string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	switch key {
	case "tool", "tools":
		return TypeTool, nil
	case "media":
		return TypeMedia, nil
	case "aha! moments", "aha! moment", "aha moments", "aha moment", "aha":
		return TypeAhaMoment, nil
	case "analogy", "analogies":
		return TypeAnalogy, nil
	case "model", "models", "mental model":
		return TypeModel, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Label returns the human readable name shown next to a nugget.
func (t Type) Label() string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return t.String()
}

// Valid reports whether t is one of the enumerated types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Nugget is a typed insight with the boundary phrases that delimit it in
// the source page.
type Nugget struct {
	Type         Type   `json:"type"`
	StartContent string `json:"startContent"`
	EndContent   string `json:"endContent"`
}

// keySpace namespaces identity keys.
var keySpace = uuid.MustParse("6f1c3a52-7d1e-4b8a-9c0e-2a5d4f7b9e31")

// Key returns the identity of the highlight target. Nuggets whose boundary
// phrases normalize to the same pair share a key.
func (n Nugget) Key() string {
	pair := normalize.Advanced(n.StartContent) + "\x00" + normalize.Advanced(n.EndContent)
	return uuid.NewSHA1(keySpace, []byte(pair)).String()
}

// Validate checks the type. Empty boundaries are left for the matcher to
// reject so they surface as not-found rather than as input errors.
func (n Nugget) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, int(n.Type))
	}
	return nil
}

// Blank reports whether either boundary is empty or whitespace-only.
func (n Nugget) Blank() bool {
	return strings.TrimSpace(n.StartContent) == "" || strings.TrimSpace(n.EndContent) == ""
}

func (n Nugget) String() string {
	return fmt.Sprintf("[%s] %q … %q", n.Type, n.StartContent, n.EndContent)
}

// Status is the per-nugget outcome reported to the sidebar.
type Status int

const (
	StatusNotFound Status = iota
	StatusHighlighted
)

func (s Status) String() string {
	if s == StatusHighlighted {
		return "Highlighted on page"
	}
	return "Could not be located"
}
