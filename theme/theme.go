// Package theme provides the terminal colours highlights are printed in.
package theme

import (
	"strings"

	"nuggets/nugget"
	"nuggets/render"
)

// Color represents an RGB color that can render to ANSI.
type Color struct {
	R, G, B uint8
}

// Theme is a palette with one highlight colour per nugget type.
type Theme struct {
	Name string
	Dark bool

	Text  Color // text drawn on top of highlights
	Label Color // the [type] tag after a highlight

	Tool      Color
	Media     Color
	AhaMoment Color
	Analogy   Color
	Model     Color
}

// Style creates a render.Style with the given foreground color.
func (c Color) Style() render.Style {
	return render.Style{
		FgRGB:    [3]uint8{c.R, c.G, c.B},
		UseFgRGB: true,
	}
}

// StyleFgBg creates a render.Style with foreground and background colors.
func StyleFgBg(fg, bg Color) render.Style {
	return render.Style{
		FgRGB:    [3]uint8{fg.R, fg.G, fg.B},
		UseFgRGB: true,
		BgRGB:    [3]uint8{bg.R, bg.G, bg.B},
		UseBgRGB: true,
	}
}

// Highlight returns the style for a nugget of type t.
func (t *Theme) Highlight(typ nugget.Type) render.Style {
	var bg Color
	switch typ {
	case nugget.TypeTool:
		bg = t.Tool
	case nugget.TypeMedia:
		bg = t.Media
	case nugget.TypeAhaMoment:
		bg = t.AhaMoment
	case nugget.TypeAnalogy:
		bg = t.Analogy
	case nugget.TypeModel:
		bg = t.Model
	default:
		return render.Style{Reverse: true}
	}
	return StyleFgBg(t.Text, bg)
}

// LabelStyle is the style of the [type] tag.
func (t *Theme) LabelStyle() render.Style {
	s := t.Label.Style()
	s.Dim = true
	return s
}

// Hex creates a Color from a hex string like "#RRGGBB" or "RRGGBB".
func Hex(s string) Color {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return Color{}
	}
	return Color{
		R: hexByte(s[0:2]),
		G: hexByte(s[2:4]),
		B: hexByte(s[4:6]),
	}
}

func hexByte(s string) uint8 {
	var v uint8
	for _, c := range s {
		v *= 16
		switch {
		case c >= '0' && c <= '9':
			v += uint8(c - '0')
		case c >= 'a' && c <= 'f':
			v += uint8(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			v += uint8(c - 'A' + 10)
		}
	}
	return v
}

// Built-in themes
var (
	DefaultDark = &Theme{
		Name:      "default-dark",
		Dark:      true,
		Text:      Hex("1a1a1a"),
		Label:     Hex("888888"),
		Tool:      Hex("ffd700"), // gold
		Media:     Hex("5fd7d7"), // cyan
		AhaMoment: Hex("d787d7"), // magenta
		Analogy:   Hex("87d787"), // green
		Model:     Hex("87afff"), // blue
	}

	DefaultLight = &Theme{
		Name:      "default-light",
		Text:      Hex("1a1a1a"),
		Label:     Hex("666666"),
		Tool:      Hex("fff176"),
		Media:     Hex("b2ebf2"),
		AhaMoment: Hex("f8bbd0"),
		Analogy:   Hex("c8e6c9"),
		Model:     Hex("bbdefb"),
	}

	Solarized = &Theme{
		Name:      "solarized",
		Dark:      true,
		Text:      Hex("002b36"),
		Label:     Hex("586e75"),
		Tool:      Hex("b58900"),
		Media:     Hex("2aa198"),
		AhaMoment: Hex("d33682"),
		Analogy:   Hex("859900"),
		Model:     Hex("268bd2"),
	}
)

// All lists the built-in themes.
var All = []*Theme{DefaultDark, DefaultLight, Solarized}

// Get returns the named theme, or DefaultDark when the name is unknown.
func Get(name string) (*Theme, bool) {
	for _, t := range All {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return DefaultDark, false
}
