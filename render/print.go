package render

import (
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Block is a paragraph of the text buffer, laid out on its own.
type Block struct {
	Start, End int
	Heading    bool
}

// Mark styles the buffer range [Start, End). A non-empty Label is printed
// after the last word the mark touches.
type Mark struct {
	Start, End int
	Style      Style
	Label      string
}

// Printer lays out blocks of a text buffer with marked ranges.
type Printer struct {
	Width        int
	HeadingStyle Style
	LabelStyle   Style
	// Color false prints plain text, with labels still shown.
	Color bool
}

// NewPrinter returns a colored printer for width cells.
func NewPrinter(width int) *Printer {
	return &Printer{
		Width:        width,
		HeadingStyle: Style{Bold: true},
		LabelStyle:   Style{Dim: true},
		Color:        true,
	}
}

// word is one whitespace-delimited unit of output.
type word struct {
	text  string // rendered, possibly with escapes
	width int
	space Style // style of the gap before the word
}

// Print writes each block wrapped to p.Width, separated by blank lines.
func (p *Printer) Print(w io.Writer, buf string, blocks []Block, marks []Mark) error {
	marks = append([]Mark(nil), marks...)
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].Start < marks[j].Start })

	for i, b := range blocks {
		if b.Start < 0 || b.End > len(buf) || b.Start >= b.End {
			continue
		}
		var sb strings.Builder
		if i > 0 {
			sb.WriteByte('\n')
		}
		for _, line := range p.layout(buf, b, marks) {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) layout(buf string, b Block, marks []Mark) []string {
	base := Style{}
	if b.Heading {
		base = p.HeadingStyle
	}

	var words []word
	pos := b.Start
	for pos < b.End {
		r, size := utf8.DecodeRuneInString(buf[pos:])
		if unicode.IsSpace(r) {
			pos += size
			continue
		}
		start := pos
		for pos < b.End {
			r, size = utf8.DecodeRuneInString(buf[pos:])
			if unicode.IsSpace(r) {
				break
			}
			pos += size
		}

		gap := base
		if start > b.Start && covered(marks, start-1) {
			gap = base.Merge(styleAt(marks, start-1))
		}
		words = append(words, word{
			text:  p.styled(buf, start, pos, base, marks),
			width: StringWidth(buf[start:pos]),
			space: gap,
		})
		for _, m := range marks {
			if m.Label != "" && m.End > start && m.End <= pos {
				label := "[" + m.Label + "]"
				words = append(words, word{text: p.apply(p.LabelStyle, label), width: StringWidth(label)})
			}
		}
	}
	return p.wrap(words)
}

// styled renders buf[start:end] split at mark boundaries.
func (p *Printer) styled(buf string, start, end int, base Style, marks []Mark) string {
	var sb strings.Builder
	run := start
	cur := base.Merge(styleAt(marks, start))
	for i := start; i < end; {
		_, size := utf8.DecodeRuneInString(buf[i:])
		next := i + size
		if next < end {
			if s := base.Merge(styleAt(marks, next)); s != cur {
				sb.WriteString(p.apply(cur, buf[run:next]))
				run, cur = next, s
			}
		}
		i = next
	}
	sb.WriteString(p.apply(cur, buf[run:end]))
	return sb.String()
}

func (p *Printer) apply(s Style, text string) string {
	if !p.Color {
		return text
	}
	return s.Apply(text)
}

func (p *Printer) wrap(words []word) []string {
	var lines []string
	var line strings.Builder
	width := 0
	for _, w := range words {
		if width > 0 && width+1+w.width > p.Width {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteString(p.apply(w.space, " "))
			width++
		}
		line.WriteString(w.text)
		width += w.width
	}
	if width > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// styleAt returns the style of the first mark covering off.
func styleAt(marks []Mark, off int) Style {
	for _, m := range marks {
		if m.Start > off {
			break
		}
		if off < m.End {
			return m.Style
		}
	}
	return Style{}
}

func covered(marks []Mark, off int) bool {
	for _, m := range marks {
		if m.Start > off {
			break
		}
		if off < m.End {
			return true
		}
	}
	return false
}
