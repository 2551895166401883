// Package normalize canonicalizes text for boundary comparison.
//
// Every normalization level is a distinct, labeled Level so that a failed
// match can be explained by the level that would have succeeded. Mapped
// results keep a byte-offset table back into the source text, which lets the
// matcher translate a hit in normalized text into buffer offsets.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Level identifies a normalization tier.
type Level int

const (
	// LevelExact lowercases only. Whitespace and punctuation are untouched.
	LevelExact Level = iota
	// LevelBasic lowercases, collapses whitespace runs and trims.
	LevelBasic
	// LevelAdvanced is LevelBasic plus quote, dash, ellipsis, space and
	// diacritic folding.
	LevelAdvanced
	// LevelLoose is LevelAdvanced with trailing sentence punctuation removed.
	LevelLoose
	// LevelURL is LevelAdvanced with spurious spaces inside URL-like tokens
	// collapsed.
	LevelURL
)

func (l Level) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelBasic:
		return "basic"
	case LevelAdvanced:
		return "advanced"
	case LevelLoose:
		return "loose"
	case LevelURL:
		return "url"
	default:
		return "unknown"
	}
}

// Normalize lowercases, collapses whitespace and trims.
func Normalize(s string) string { return Map(LevelBasic, s).Text }

// Advanced applies Normalize plus Unicode variant folding.
func Advanced(s string) string { return Map(LevelAdvanced, s).Text }

// Loose applies Advanced and strips trailing sentence punctuation.
func Loose(s string) string { return Map(LevelLoose, s).Text }

// URL applies Advanced and collapses spaces inserted inside URL tokens.
func URL(s string) string { return Map(LevelURL, s).Text }

// Mapped is normalized text with a table back to source byte offsets.
type Mapped struct {
	Text string

	// starts[i] and ends[i] bound the source rune that produced Text[i].
	starts []int
	ends   []int
	srcLen int
}

// Original translates the normalized byte range [start, end) into the
// corresponding source byte range.
func (m Mapped) Original(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(m.Text) {
		end = len(m.Text)
	}
	if start >= len(m.Text) {
		return m.srcLen, m.srcLen
	}
	if end <= start {
		return m.starts[start], m.starts[start]
	}
	return m.starts[start], m.ends[end-1]
}

// Normalized returns the first normalized offset whose source rune starts
// at or after the source offset orig.
func (m Mapped) Normalized(orig int) int {
	return sort.Search(len(m.Text), func(i int) bool { return m.starts[i] >= orig })
}

// Len returns the length of the normalized text.
func (m Mapped) Len() int { return len(m.Text) }

var quoteFold = map[rune]string{
	'\u2018': "'", // left single quote
	'\u2019': "'", // right single quote
	'\u201a': "'",
	'\u201b': "'",
	'\u00b4': "'", // acute accent
	'`':      "'",
	'\u02bc': "'", // modifier apostrophe
	'\u2032': "'", // prime
	'\u201c': `"`,
	'\u201d': `"`,
	'\u201e': `"`,
	'\u201f': `"`,
	'\u00ab': `"`,
	'\u00bb': `"`,
	'\u2033': `"`,
	'\u2010': "-", // hyphen
	'\u2011': "-", // non-breaking hyphen
	'\u2012': "-", // figure dash
	'\u2013': "-", // en dash
	'\u2014': "-", // em dash
	'\u2015': "-",
	'\u2212': "-", // minus
	'\u2026': "...",
}

// zeroWidth runes are dropped entirely at the advanced levels.
var zeroWidth = map[rune]bool{
	'\u200b': true,
	'\u200c': true,
	'\u200d': true,
	'\u2060': true,
	'\ufeff': true,
	'\u00ad': true, // soft hyphen
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// trailingPunct is removed from the end of Loose text.
const trailingPunct = ".,;:!?'\")]"

type builder struct {
	sb     strings.Builder
	starts []int
	ends   []int
	// index of the first byte of the most recently emitted chunk
	last int

	pendingSpace       bool
	spaceFrom, spaceTo int
	collapseWhitespace bool
}

func (b *builder) emit(s string, from, to int) {
	if b.pendingSpace {
		b.pendingSpace = false
		b.write(" ", b.spaceFrom, b.spaceTo)
	}
	b.write(s, from, to)
}

func (b *builder) write(s string, from, to int) {
	b.last = b.sb.Len()
	b.sb.WriteString(s)
	for i := 0; i < len(s); i++ {
		b.starts = append(b.starts, from)
		b.ends = append(b.ends, to)
	}
}

// extend attributes a dropped source rune to the previous chunk.
func (b *builder) extend(to int) {
	if b.pendingSpace || len(b.ends) == 0 {
		return
	}
	for i := b.last; i < len(b.ends); i++ {
		b.ends[i] = to
	}
}

func (b *builder) space(from, to int) {
	if !b.collapseWhitespace {
		b.emit(" ", from, to)
		return
	}
	if b.sb.Len() == 0 {
		return
	}
	if !b.pendingSpace {
		b.pendingSpace = true
		b.spaceFrom, b.spaceTo = from, to
	}
}

// Map normalizes s at the given level, keeping the source offset table.
func Map(level Level, s string) Mapped {
	b := &builder{collapseWhitespace: level != LevelExact}
	b.starts = make([]int, 0, len(s))
	b.ends = make([]int, 0, len(s))
	advanced := level >= LevelAdvanced

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		from, to := i, i+size
		i = to

		if unicode.IsSpace(r) {
			if level == LevelExact {
				b.emit(string(r), from, to)
			} else {
				b.space(from, to)
			}
			continue
		}

		if !advanced {
			b.emit(lowerRune(r), from, to)
			continue
		}

		if zeroWidth[r] || unicode.Is(unicode.Mn, r) {
			b.extend(to)
			continue
		}
		if folded, ok := quoteFold[r]; ok {
			b.emit(folded, from, to)
			continue
		}
		if unicode.Is(unicode.Zs, r) {
			b.space(from, to)
			continue
		}
		if r >= utf8.RuneSelf {
			stripped, _, err := transform.String(stripMarks, string(r))
			if err == nil && stripped != "" {
				b.emit(strings.ToLower(stripped), from, to)
				continue
			}
		}
		b.emit(lowerRune(r), from, to)
	}

	m := Mapped{
		Text:   b.sb.String(),
		starts: append(b.starts, len(s)),
		ends:   append(b.ends, len(s)),
		srcLen: len(s),
	}

	switch level {
	case LevelLoose:
		m = trimTrailingPunct(m)
	case LevelURL:
		m = collapseURLSpaces(m, s)
	}
	return m
}

func lowerRune(r rune) string {
	if r < utf8.RuneSelf {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		return string(r)
	}
	return strings.ToLower(string(r))
}

func trimTrailingPunct(m Mapped) Mapped {
	n := len(m.Text)
	for n > 0 && (strings.IndexByte(trailingPunct, m.Text[n-1]) >= 0 || m.Text[n-1] == ' ') {
		n--
	}
	return m.cut(n)
}

func (m Mapped) cut(n int) Mapped {
	if n == len(m.Text) {
		return m
	}
	return Mapped{
		Text:   m.Text[:n],
		starts: append(m.starts[:n:n], m.srcLen),
		ends:   append(m.ends[:n:n], m.srcLen),
		srcLen: m.srcLen,
	}
}

// collapseURLSpaces removes a space when it sits between a dot or slash and
// a continuing host/path character, e.g. "pmc. ncbi. nlm" -> "pmc.ncbi.nlm".
// A capital letter after the space starts a sentence and keeps the space.
func collapseURLSpaces(m Mapped, src string) Mapped {
	text := m.Text
	if !strings.Contains(text, " ") {
		return m
	}
	out := Mapped{srcLen: m.srcLen}
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' && i > 0 && i+1 < len(text) && urlJoin(text[i-1], text[i+1]) && !upperAt(src, m.starts[i+1]) {
			continue
		}
		sb.WriteByte(text[i])
		out.starts = append(out.starts, m.starts[i])
		out.ends = append(out.ends, m.ends[i])
	}
	out.Text = sb.String()
	out.starts = append(out.starts, m.srcLen)
	out.ends = append(out.ends, m.srcLen)
	return out
}

func urlJoin(prev, next byte) bool {
	switch {
	case prev == '.' || prev == '/':
		return isHostByte(next)
	case next == '.' || next == '/':
		return isHostByte(prev)
	}
	return false
}

func upperAt(s string, i int) bool {
	return i < len(s) && 'A' <= s[i] && s[i] <= 'Z'
}

func isHostByte(c byte) bool {
	return ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')
}

var urlLike = regexp.MustCompile(`(?i)(https?:|www\.|\w\.\s?(com|org|net|gov|edu|io|dev|ai|co|uk)\b|\w\.\s\w+\.\s?\w)`)

// LooksLikeURL reports whether s contains a URL or host-like token.
func LooksLikeURL(s string) bool {
	return urlLike.MatchString(s)
}

// Words splits s (at LevelAdvanced) into letter/digit tokens of at least
// minLen runes.
func Words(s string, minLen int) []string {
	fields := strings.FieldsFunc(Advanced(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minLen {
			words = append(words, f)
		}
	}
	return words
}
