// Package render lays out highlighted page text and status reports for
// the terminal.
package render

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// Alignment specifies text alignment within a given width.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Style is an SGR text style.
type Style struct {
	Bold      bool
	Dim       bool
	Underline bool
	Reverse   bool
	FgColor   int // ANSI foreground color code (0 = default, 32 = green, 33 = yellow, etc.)
	BgColor   int // ANSI background color code (0 = default, 43 = yellow, etc.)
	FgRGB     [3]uint8
	UseFgRGB  bool
	BgRGB     [3]uint8
	UseBgRGB  bool
}

// Plain reports whether s carries no styling.
func (s Style) Plain() bool { return s == Style{} }

// Merge layers o over s. Flags accumulate and colors set in o win.
func (s Style) Merge(o Style) Style {
	s.Bold = s.Bold || o.Bold
	s.Dim = s.Dim || o.Dim
	s.Underline = s.Underline || o.Underline
	s.Reverse = s.Reverse || o.Reverse
	if o.FgColor > 0 {
		s.FgColor = o.FgColor
	}
	if o.BgColor > 0 {
		s.BgColor = o.BgColor
	}
	if o.UseFgRGB {
		s.FgRGB, s.UseFgRGB = o.FgRGB, true
	}
	if o.UseBgRGB {
		s.BgRGB, s.UseBgRGB = o.BgRGB, true
	}
	return s
}

// Sequence returns the escape sequence selecting s.
func (s Style) Sequence() string {
	codes := []string{"0"}
	if s.Bold {
		codes = append(codes, "1")
	}
	if s.Dim {
		codes = append(codes, "2")
	}
	if s.Underline {
		codes = append(codes, "4")
	}
	if s.Reverse {
		codes = append(codes, "7")
	}
	if s.UseFgRGB {
		// True color: 38;2;R;G;B
		codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", s.FgRGB[0], s.FgRGB[1], s.FgRGB[2]))
	} else if s.FgColor > 0 {
		codes = append(codes, fmt.Sprintf("%d", s.FgColor))
	}
	if s.UseBgRGB {
		codes = append(codes, fmt.Sprintf("48;2;%d;%d;%d", s.BgRGB[0], s.BgRGB[1], s.BgRGB[2]))
	} else if s.BgColor > 0 {
		codes = append(codes, fmt.Sprintf("%d", s.BgColor))
	}
	return fmt.Sprintf("\033[%sm", strings.Join(codes, ";"))
}

// Reset clears all styling.
const Reset = "\033[0m"

// Apply wraps text in s, or returns it unchanged for a plain style.
func (s Style) Apply(text string) string {
	if s.Plain() || text == "" {
		return text
	}
	return s.Sequence() + text + Reset
}

// UnicodeWidth returns the display width of a rune in terminal cells.
func UnicodeWidth(r rune) int { return runewidth.RuneWidth(r) }

// StringWidth returns the display width of a string in terminal cells.
func StringWidth(s string) int { return runewidth.StringWidth(s) }

// WrapText wraps text to fit within a given width in terminal cells.
func WrapText(text string, width int) []string {
	if width <= 0 {
		return nil
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var currentLine strings.Builder
		currentWidth := 0

		for _, word := range words {
			wordWidth := StringWidth(word)

			if currentWidth > 0 && currentWidth+1+wordWidth <= width {
				currentLine.WriteByte(' ')
				currentLine.WriteString(word)
				currentWidth += 1 + wordWidth
				continue
			}
			if currentWidth > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
				currentWidth = 0
			}
			if wordWidth > width {
				lines = append(lines, breakWordUnicode(word, width)...)
				continue
			}
			currentLine.WriteString(word)
			currentWidth = wordWidth
		}

		if currentWidth > 0 {
			lines = append(lines, currentLine.String())
		}
	}

	return lines
}

func breakWordUnicode(word string, maxWidth int) []string {
	var result []string
	runes := []rune(word)

	for len(runes) > 0 {
		var line strings.Builder
		lineWidth := 0

		for len(runes) > 0 {
			r := runes[0]
			w := UnicodeWidth(r)
			if lineWidth+w > maxWidth {
				break
			}
			line.WriteRune(r)
			lineWidth += w
			runes = runes[1:]
		}

		if line.Len() > 0 {
			result = append(result, line.String())
		} else if len(runes) > 0 {
			line.WriteRune(runes[0])
			result = append(result, line.String())
			runes = runes[1:]
		}
	}

	return result
}

// AlignText pads or truncates text to width.
func AlignText(text string, width int, align Alignment) string {
	textWidth := StringWidth(text)
	if textWidth >= width {
		return TruncateToWidth(text, width)
	}

	switch align {
	case AlignRight:
		return strings.Repeat(" ", width-textWidth) + text
	case AlignCenter:
		left := (width - textWidth) / 2
		right := width - textWidth - left
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
	default:
		return text + strings.Repeat(" ", width-textWidth)
	}
}

// TruncateToWidth truncates a string to fit within the specified width.
func TruncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}

	width := 0
	for i, r := range s {
		charWidth := UnicodeWidth(r)
		if width+charWidth > maxWidth {
			return s[:i]
		}
		width += charWidth
	}

	return s
}

// Truncate truncates a string adding ellipsis if needed.
func Truncate(s string, width int) string {
	sWidth := StringWidth(s)
	if sWidth <= width {
		return s
	}
	if width <= 3 {
		return TruncateToWidth(s, width)
	}
	return TruncateToWidth(s, width-3) + "..."
}

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	var sb strings.Builder
	inEscape := false

	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

// IsBlank returns true if the string contains only whitespace.
func IsBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
