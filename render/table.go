package render

import "strings"

// BoxStyle defines the characters used for drawing boxes.
type BoxStyle struct {
	TopLeft     rune
	TopRight    rune
	BottomLeft  rune
	BottomRight rune
	Horizontal  rune
	Vertical    rune
	TopTee      rune
	BottomTee   rune
	LeftTee     rune
	RightTee    rune
	Cross       rune
}

var (
	SingleBox = BoxStyle{
		TopLeft: '┌', TopRight: '┐', BottomLeft: '└', BottomRight: '┘',
		Horizontal: '─', Vertical: '│',
		TopTee: '┬', BottomTee: '┴', LeftTee: '├', RightTee: '┤', Cross: '┼',
	}

	ASCIIBox = BoxStyle{
		TopLeft: '+', TopRight: '+', BottomLeft: '+', BottomRight: '+',
		Horizontal: '-', Vertical: '|',
		TopTee: '+', BottomTee: '+', LeftTee: '+', RightTee: '+', Cross: '+',
	}
)

// Table is a bordered text table.
type Table struct {
	Headers     []string
	Rows        [][]string
	ColumnAlign []Alignment
	BoxStyle    BoxStyle
	// MaxCell truncates cells wider than this many cells; zero disables.
	MaxCell int
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:     headers,
		BoxStyle:    SingleBox,
		ColumnAlign: make([]Alignment, len(headers)),
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	for len(cells) < len(t.Headers) {
		cells = append(cells, "")
	}
	t.Rows = append(t.Rows, cells)
}

// SetAlignment sets the alignment for a column.
func (t *Table) SetAlignment(col int, align Alignment) {
	if col >= 0 && col < len(t.ColumnAlign) {
		t.ColumnAlign[col] = align
	}
}

func (t *Table) cell(s string) string {
	if t.MaxCell > 0 {
		return Truncate(s, t.MaxCell)
	}
	return s
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = StringWidth(h)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) {
				if w := StringWidth(t.cell(c)); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	return widths
}

// RenderToString renders the table to a string.
func (t *Table) RenderToString() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.columnWidths()
	box := t.BoxStyle

	var lines []string
	lines = append(lines, t.border(widths, box.TopLeft, box.TopTee, box.TopRight))
	lines = append(lines, t.row(t.Headers, widths))
	lines = append(lines, t.border(widths, box.LeftTee, box.Cross, box.RightTee))
	for _, r := range t.Rows {
		lines = append(lines, t.row(r, widths))
	}
	lines = append(lines, t.border(widths, box.BottomLeft, box.BottomTee, box.BottomRight))
	return strings.Join(lines, "\n")
}

func (t *Table) border(widths []int, left, mid, right rune) string {
	var sb strings.Builder
	sb.WriteRune(left)
	for i, w := range widths {
		sb.WriteString(strings.Repeat(string(t.BoxStyle.Horizontal), w+2))
		if i < len(widths)-1 {
			sb.WriteRune(mid)
		}
	}
	sb.WriteRune(right)
	return sb.String()
}

func (t *Table) row(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteRune(t.BoxStyle.Vertical)
	for i, w := range widths {
		c := ""
		if i < len(cells) {
			c = t.cell(cells[i])
		}
		align := AlignLeft
		if i < len(t.ColumnAlign) {
			align = t.ColumnAlign[i]
		}
		sb.WriteByte(' ')
		sb.WriteString(AlignText(c, w, align))
		sb.WriteByte(' ')
		sb.WriteRune(t.BoxStyle.Vertical)
	}
	return sb.String()
}
