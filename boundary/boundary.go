// Package boundary locates the text span delimited by a nugget's start and
// end phrases inside a textindex buffer.
//
// Matching runs through tiers of increasing tolerance. A tier is only
// attempted when every earlier tier found nothing, so an exact hit always
// wins over a fuzzy one:
//
//	exact          case-insensitive substring search
//	normalized     quote/dash/ellipsis/diacritic folding on both sides
//	end-normalized as normalized, with trailing punctuation dropped from the end phrase
//	url            host/path tokens with model-inserted spaces collapsed
//	fuzzy          word overlap around an anchored start phrase
//	container      best scoring block element, highlighted whole
package boundary

import (
	"strings"

	"golang.org/x/net/html"

	"nuggets/logger"
	"nuggets/normalize"
	"nuggets/textindex"
)

// Strategy names the tier that produced a match.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExact
	StrategyNormalized
	StrategyEndNormalized
	StrategyURL
	StrategyFuzzy
	StrategyContainer
)

func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyNormalized:
		return "normalized"
	case StrategyEndNormalized:
		return "end-normalized"
	case StrategyURL:
		return "url"
	case StrategyFuzzy:
		return "fuzzy"
	case StrategyContainer:
		return "container"
	default:
		return "none"
	}
}

// Result is the outcome of a match. Start and End are buffer offsets,
// End exclusive.
type Result struct {
	Found      bool
	Start, End int
	Strategy   Strategy
	Confidence float64

	// Container is set for container matches.
	Container *html.Node
}

// Len returns the length of the matched range.
func (r Result) Len() int { return r.End - r.Start }

// Config holds the tunable thresholds.
type Config struct {
	// FuzzyThreshold is the minimum word overlap ratio for the fuzzy tier.
	FuzzyThreshold float64
	// ContainerThreshold is the minimum mean overlap for a container match.
	ContainerThreshold float64
	// MinWordLength drops shorter tokens from overlap scoring.
	MinWordLength int
	// MaxSpan bounds how far past the start anchor the fuzzy tier looks
	// for the end phrase, in bytes.
	MaxSpan int
	// ContainerSelector picks the block elements scored by the container tier.
	ContainerSelector string
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:     0.75,
		ContainerThreshold: 0.6,
		MinWordLength:      3,
		MaxSpan:            5000,
		ContainerSelector:  "p, li, blockquote, section, article, main",
	}
}

// Matcher runs the tiered search.
type Matcher struct {
	cfg Config
}

// New creates a matcher. Zero fields in cfg take their default values.
func New(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = def.FuzzyThreshold
	}
	if cfg.ContainerThreshold <= 0 {
		cfg.ContainerThreshold = def.ContainerThreshold
	}
	if cfg.MinWordLength <= 0 {
		cfg.MinWordLength = def.MinWordLength
	}
	if cfg.MaxSpan <= 0 {
		cfg.MaxSpan = def.MaxSpan
	}
	if cfg.ContainerSelector == "" {
		cfg.ContainerSelector = def.ContainerSelector
	}
	return &Matcher{cfg: cfg}
}

// Config returns the effective configuration.
func (m *Matcher) Config() Config { return m.cfg }

type query struct {
	start, end string
}

// tierFunc reports ran=false when the tier was skipped as redundant.
type tierFunc func(ix *textindex.Index, q query) (res Result, ran bool)

type tier struct {
	strategy Strategy
	run      tierFunc
}

func (m *Matcher) tiers() []tier {
	return []tier{
		{StrategyExact, m.exact},
		{StrategyNormalized, m.normalized},
		{StrategyEndNormalized, m.endNormalized},
		{StrategyURL, m.url},
		{StrategyFuzzy, m.fuzzy},
		{StrategyContainer, m.container},
	}
}

// Match finds the span of ix.Buffer delimited by start and end. Empty
// phrases and empty indexes return a zero Result without searching.
func (m *Matcher) Match(ix *textindex.Index, start, end string) Result {
	q := query{start: strings.TrimSpace(start), end: strings.TrimSpace(end)}
	if q.start == "" || q.end == "" {
		return Result{}
	}
	if ix == nil || ix.Empty() {
		return Result{}
	}

	if phrase, ok := singlePoint(q); ok {
		res := m.point(ix, phrase)
		logger.Debug("point lookup %q: found=%v strategy=%s", phrase, res.Found, res.Strategy)
		return res
	}

	for _, t := range m.tiers() {
		res, ran := t.run(ix, q)
		if !ran {
			logger.Debug("tier %s skipped", t.strategy)
			continue
		}
		if res.Found {
			logger.Debug("tier %s matched [%d,%d) confidence %.2f", t.strategy, res.Start, res.End, res.Confidence)
			return res
		}
	}
	return Result{}
}

// TierReport is the independent outcome of one tier.
type TierReport struct {
	Strategy Strategy
	Ran      bool
	Result   Result
}

// Diagnose runs every tier regardless of earlier hits, so a failed match can
// be explained by which tier would have succeeded.
func (m *Matcher) Diagnose(ix *textindex.Index, start, end string) []TierReport {
	q := query{start: strings.TrimSpace(start), end: strings.TrimSpace(end)}
	if q.start == "" || q.end == "" || ix == nil || ix.Empty() {
		return nil
	}
	var reports []TierReport
	for _, t := range m.tiers() {
		res, ran := t.run(ix, q)
		reports = append(reports, TierReport{Strategy: t.strategy, Ran: ran, Result: res})
	}
	return reports
}

// singlePoint reports whether the boundaries describe one phrase rather
// than a prefix/suffix pair, returning the phrase to look up.
func singlePoint(q query) (string, bool) {
	a, b := normalize.Advanced(q.start), normalize.Advanced(q.end)
	switch {
	case a == b:
		return q.start, true
	case containsPhrase(a, b):
		return q.start, true
	case containsPhrase(b, a):
		return q.end, true
	}
	return "", false
}

// containsPhrase reports whether sub occurs in s on word boundaries, so an
// end of "in" is not contained in "industries".
func containsPhrase(s, sub string) bool {
	if sub == "" {
		return false
	}
	for from := 0; from <= len(s)-len(sub); {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return false
		}
		pos := from + i
		if wordEdge(s, pos) && wordEdge(s, pos+len(sub)) {
			return true
		}
		from = pos + 1
	}
	return false
}

// wordEdge reports whether offset i does not fall inside a word.
func wordEdge(s string, i int) bool {
	return i == 0 || i == len(s) || !isWordByte(s[i-1]) || !isWordByte(s[i])
}

func (m *Matcher) point(ix *textindex.Index, phrase string) Result {
	levels := []struct {
		level    normalize.Level
		strategy Strategy
	}{
		{normalize.LevelExact, StrategyExact},
		{normalize.LevelAdvanced, StrategyNormalized},
		{normalize.LevelLoose, StrategyEndNormalized},
	}
	if normalize.LooksLikeURL(phrase) {
		levels = append(levels, struct {
			level    normalize.Level
			strategy Strategy
		}{normalize.LevelURL, StrategyURL})
	}

	for _, l := range levels {
		p := normalize.Map(l.level, phrase).Text
		if p == "" {
			continue
		}
		bufLevel := l.level
		if bufLevel == normalize.LevelLoose {
			bufLevel = normalize.LevelAdvanced
		}
		mapped := ix.Mapped(bufLevel)
		idx := strings.Index(mapped.Text, p)
		if idx < 0 {
			continue
		}
		start, end := mapped.Original(idx, idx+len(p))
		return Result{
			Found:      true,
			Start:      start,
			End:        end,
			Strategy:   l.strategy,
			Confidence: tierConfidence(l.strategy) - boundaryPenalty(ix.Buffer, start, end),
		}
	}
	return Result{}
}

// searchPair enumerates every occurrence of s in text and pairs it with the
// nearest following occurrence of e. The shortest pair wins; ties go to the
// earliest. Offsets are in text coordinates.
func searchPair(text, s, e string) (int, int, bool) {
	if s == "" || e == "" {
		return 0, 0, false
	}
	bestStart, bestEnd := -1, -1
	for from := 0; from <= len(text)-len(s); {
		i := strings.Index(text[from:], s)
		if i < 0 {
			break
		}
		sPos := from + i
		after := sPos + len(s)
		if j := strings.Index(text[after:], e); j >= 0 {
			ePos := after + j + len(e)
			if bestStart < 0 || ePos-sPos < bestEnd-bestStart {
				bestStart, bestEnd = sPos, ePos
			}
		}
		from = sPos + 1
	}
	if bestStart < 0 {
		return 0, 0, false
	}
	return bestStart, bestEnd, true
}

func (m *Matcher) pair(ix *textindex.Index, level normalize.Level, s, e string, strategy Strategy) Result {
	mapped := ix.Mapped(level)
	ns, ne, ok := searchPair(mapped.Text, s, e)
	if !ok {
		return Result{}
	}
	start, end := mapped.Original(ns, ne)
	return Result{
		Found:      true,
		Start:      start,
		End:        end,
		Strategy:   strategy,
		Confidence: tierConfidence(strategy) - boundaryPenalty(ix.Buffer, start, end),
	}
}

func (m *Matcher) exact(ix *textindex.Index, q query) (Result, bool) {
	s := normalize.Map(normalize.LevelExact, q.start).Text
	e := normalize.Map(normalize.LevelExact, q.end).Text
	return m.pair(ix, normalize.LevelExact, s, e, StrategyExact), true
}

func (m *Matcher) normalized(ix *textindex.Index, q query) (Result, bool) {
	s, e := normalize.Advanced(q.start), normalize.Advanced(q.end)
	unchanged := s == normalize.Map(normalize.LevelExact, q.start).Text &&
		e == normalize.Map(normalize.LevelExact, q.end).Text &&
		ix.Mapped(normalize.LevelAdvanced).Text == ix.Mapped(normalize.LevelExact).Text
	if unchanged {
		return Result{}, false
	}
	return m.pair(ix, normalize.LevelAdvanced, s, e, StrategyNormalized), true
}

func (m *Matcher) endNormalized(ix *textindex.Index, q query) (Result, bool) {
	e := normalize.Loose(q.end)
	if e == "" || e == normalize.Advanced(q.end) {
		return Result{}, false
	}
	return m.pair(ix, normalize.LevelAdvanced, normalize.Advanced(q.start), e, StrategyEndNormalized), true
}

func (m *Matcher) url(ix *textindex.Index, q query) (Result, bool) {
	if !normalize.LooksLikeURL(q.start) && !normalize.LooksLikeURL(q.end) {
		return Result{}, false
	}
	s, e := normalize.URL(q.start), normalize.URL(q.end)
	if s == normalize.Advanced(q.start) && e == normalize.Advanced(q.end) {
		return Result{}, false
	}
	return m.pair(ix, normalize.LevelURL, s, e, StrategyURL), true
}

func tierConfidence(s Strategy) float64 {
	switch s {
	case StrategyExact:
		return 1.0
	case StrategyNormalized:
		return 0.95
	case StrategyEndNormalized, StrategyURL:
		return 0.9
	}
	return 0
}

// boundaryPenalty marks down matches that cut a word in half.
func boundaryPenalty(buf string, start, end int) float64 {
	if start > 0 && start < len(buf) && isWordByte(buf[start-1]) && isWordByte(buf[start]) {
		return 0.1
	}
	if end > 0 && end < len(buf) && isWordByte(buf[end-1]) && isWordByte(buf[end]) {
		return 0.1
	}
	return 0
}

func isWordByte(c byte) bool {
	return c >= 0x80 || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
