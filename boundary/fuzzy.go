package boundary

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"nuggets/normalize"
	"nuggets/textindex"
)

// token is a word in normalized text with its byte range.
type token struct {
	text       string
	start, end int
}

func tokenize(text string, minLen int) []token {
	var toks []token
	start := -1
	runes := 0
	flush := func(end int) {
		if start >= 0 && runes >= minLen {
			toks = append(toks, token{text: text[start:end], start: start, end: end})
		}
		start, runes = -1, 0
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			runes++
		} else {
			flush(i)
		}
		i += size
	}
	flush(len(text))
	return toks
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// overlap is the fraction of words present in set.
func overlap(words []string, set map[string]bool) float64 {
	if len(words) == 0 {
		return 0
	}
	n := 0
	for _, w := range words {
		if set[w] {
			n++
		}
	}
	return float64(n) / float64(len(words))
}

func tokenSet(toks []token) map[string]bool {
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t.text] = true
	}
	return set
}

// anchor is a candidate start region in normalized coordinates.
type anchor struct {
	start, end int
	score      float64
}

type fuzzyCandidate struct {
	start, end int
	score      float64
}

func (c fuzzyCandidate) better(o fuzzyCandidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	if c.end-c.start != o.end-o.start {
		return c.end-c.start < o.end-o.start
	}
	return c.start < o.start
}

// fuzzy anchors on the start phrase, exactly or by word overlap, then looks
// for the end phrase within MaxSpan. When no end region clears the threshold
// and the start was found verbatim, the match is completed to the end of the
// anchor's sentence, bounded by its block element, at reduced confidence.
func (m *Matcher) fuzzy(ix *textindex.Index, q query) (Result, bool) {
	startWords := normalize.Words(q.start, m.cfg.MinWordLength)
	if len(startWords) == 0 {
		return Result{}, false
	}
	endWords := normalize.Words(q.end, m.cfg.MinWordLength)

	adv := ix.Mapped(normalize.LevelAdvanced)
	toks := tokenize(adv.Text, m.cfg.MinWordLength)

	anchors := m.anchors(adv.Text, toks, normalize.Advanced(q.start), startWords)
	if len(anchors) == 0 {
		return Result{}, true
	}

	var best fuzzyCandidate
	found := false
	for _, a := range anchors {
		c, ok := m.completeAnchor(ix, adv, toks, a, q, endWords)
		if !ok {
			continue
		}
		if !found || c.better(best) {
			best, found = c, true
		}
	}
	if !found {
		return Result{}, true
	}

	start, end := adv.Original(best.start, best.end)
	return Result{
		Found:      true,
		Start:      start,
		End:        end,
		Strategy:   StrategyFuzzy,
		Confidence: best.score * 0.8,
	}, true
}

func (m *Matcher) anchors(text string, toks []token, phrase string, words []string) []anchor {
	var out []anchor
	for from := 0; phrase != "" && from <= len(text)-len(phrase); {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			break
		}
		pos := from + i
		out = append(out, anchor{start: pos, end: pos + len(phrase), score: 1})
		from = pos + 1
	}
	if len(out) > 0 {
		return out
	}

	set := wordSet(words)
	width := len(words) + 2
	for i := 0; i < len(toks); i++ {
		if !set[toks[i].text] {
			continue
		}
		j := min(i+width, len(toks))
		window := toks[i:j]
		score := overlap(words, tokenSet(window))
		if score < m.cfg.FuzzyThreshold {
			continue
		}
		last := i
		for k := j - 1; k >= i; k-- {
			if set[toks[k].text] {
				last = k
				break
			}
		}
		out = append(out, anchor{start: toks[i].start, end: toks[last].end, score: score})
		i = last
	}
	return out
}

func (m *Matcher) completeAnchor(ix *textindex.Index, adv normalize.Mapped, toks []token, a anchor, q query, endWords []string) (fuzzyCandidate, bool) {
	limit := min(a.end+m.cfg.MaxSpan, len(adv.Text))
	region := adv.Text[a.end:limit]

	for _, e := range []string{normalize.Advanced(q.end), normalize.Loose(q.end)} {
		if e == "" {
			continue
		}
		if i := strings.Index(region, e); i >= 0 {
			return fuzzyCandidate{start: a.start, end: a.end + i + len(e), score: (a.score + 1) / 2}, true
		}
	}

	if len(endWords) > 0 {
		set := wordSet(endWords)
		width := len(endWords) + 2
		var best fuzzyCandidate
		found := false
		for j := range toks {
			t := toks[j]
			if t.start < a.end {
				continue
			}
			if t.end > limit {
				break
			}
			if !set[t.text] {
				continue
			}
			lo := max(j-width+1, 0)
			for lo < j && toks[lo].start < a.end {
				lo++
			}
			score := overlap(endWords, tokenSet(toks[lo:j+1]))
			if score < m.cfg.FuzzyThreshold {
				continue
			}
			c := fuzzyCandidate{start: a.start, end: extendPunct(adv.Text, t.end), score: (a.score + score) / 2}
			if !found || c.score > best.score {
				best, found = c, true
			}
		}
		if found {
			return best, true
		}
	}

	// only a verbatim start may be completed past a missing end
	if a.score < 1 {
		return fuzzyCandidate{}, false
	}
	end := sentenceEnd(adv.Text, a.end, min(limit, m.blockLimit(ix, adv, a)))
	if end <= a.end {
		return fuzzyCandidate{}, false
	}
	completed := tokenSet(tokenize(adv.Text[a.start:end], m.cfg.MinWordLength))
	return fuzzyCandidate{start: a.start, end: end, score: (a.score + overlap(endWords, completed)) / 2}, true
}

// blockLimit returns the normalized offset where the block element holding
// the anchor ends.
func (m *Matcher) blockLimit(ix *textindex.Index, adv normalize.Mapped, a anchor) int {
	bs, _ := adv.Original(a.start, a.end)
	span, _, ok := ix.Locate(bs, false)
	if !ok {
		return len(adv.Text)
	}
	block := blockAncestor(span.Node, ix.Root)
	if block == nil {
		return len(adv.Text)
	}
	_, be, ok := ix.SpanRange(block)
	if !ok {
		return len(adv.Text)
	}
	return adv.Normalized(be)
}

func blockAncestor(n, root *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && isBlock(p.DataAtom) {
			return p
		}
		if p == root {
			break
		}
	}
	return nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Blockquote, atom.Section, atom.Article, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Td, atom.Th, atom.Pre, atom.Dd, atom.Dt, atom.Figcaption, atom.Body:
		return true
	}
	return false
}

// sentenceEnd returns the offset just past the first sentence terminator in
// text[from:limit], or limit with trailing spaces removed.
func sentenceEnd(text string, from, limit int) int {
	for i := from; i < limit; i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == limit || text[i+1] == ' ' {
				return i + 1
			}
			if text[i+1] == '"' || text[i+1] == '\'' {
				return i + 2
			}
		}
	}
	for limit > from && text[limit-1] == ' ' {
		limit--
	}
	return limit
}

// extendPunct moves end over sentence punctuation directly after a word.
func extendPunct(text string, end int) int {
	for end < len(text) && strings.IndexByte(".!?", text[end]) >= 0 {
		end++
	}
	return end
}
