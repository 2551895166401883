package boundary

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"nuggets/textindex"
)

func buildIndex(t *testing.T, src string) *textindex.Index {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var body *html.Node
	var find func(n *html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil && body == nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if body == nil {
		t.Fatal("no body")
	}
	return textindex.Build(body)
}

func matched(ix *textindex.Index, r Result) string {
	return ix.Text(r.Start, r.End)
}

func TestStrategyString(t *testing.T) {
	tests := []struct {
		s    Strategy
		want string
	}{
		{StrategyNone, "none"},
		{StrategyExact, "exact"},
		{StrategyNormalized, "normalized"},
		{StrategyEndNormalized, "end-normalized"},
		{StrategyURL, "url"},
		{StrategyFuzzy, "fuzzy"},
		{StrategyContainer, "container"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("got %q, expected %q", got, tt.want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	m := New(Config{FuzzyThreshold: 0.8})
	cfg := m.Config()
	if cfg.FuzzyThreshold != 0.8 {
		t.Errorf("fuzzy threshold = %v, expected 0.8", cfg.FuzzyThreshold)
	}
	def := DefaultConfig()
	if cfg.ContainerThreshold != def.ContainerThreshold || cfg.MinWordLength != def.MinWordLength ||
		cfg.MaxSpan != def.MaxSpan || cfg.ContainerSelector != def.ContainerSelector {
		t.Errorf("zero fields not defaulted: %+v", cfg)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		start    string
		end      string
		want     string
		strategy Strategy
	}{
		{
			name:     "exact",
			page:     `<p>Some preface. The quick brown fox leaps over the lazy cat. Trailing words.</p>`,
			start:    "The quick brown fox",
			end:      "the lazy cat.",
			want:     "The quick brown fox leaps over the lazy cat.",
			strategy: StrategyExact,
		},
		{
			name:     "exact is case insensitive",
			page:     `<p>ATTENTION is all you need.</p>`,
			start:    "attention is",
			end:      "YOU NEED",
			want:     "ATTENTION is all you need",
			strategy: StrategyExact,
		},
		{
			name:     "curly quotes against straight",
			page:     `<p>He said "hello world" and left the room.</p>`,
			start:    "He said “hello world”",
			end:      "left the room.",
			want:     `He said "hello world" and left the room.`,
			strategy: StrategyNormalized,
		},
		{
			name:     "dash and whitespace folding",
			page:     "<p>Results were mixed \u2014 mostly\n   positive overall.</p>",
			start:    "results were mixed - mostly",
			end:      "positive overall",
			want:     "Results were mixed \u2014 mostly\n   positive overall",
			strategy: StrategyNormalized,
		},
		{
			name:     "trailing punctuation on end",
			page:     `<p>The model converges quickly</p>`,
			start:    "The model",
			end:      "converges quickly.",
			want:     "The model converges quickly",
			strategy: StrategyEndNormalized,
		},
		{
			name:     "spaced url",
			page:     `<p>Read more at pmc.ncbi.nlm.nih.gov/articles today.</p>`,
			start:    "Read more at pmc. ncbi. nlm",
			end:      "nih.gov/articles today",
			want:     "Read more at pmc.ncbi.nlm.nih.gov/articles today",
			strategy: StrategyURL,
		},
		{
			name:     "hallucinated end",
			page:     `<p>Intelligence is compression, and compression follows scaling laws.</p>`,
			start:    "Intelligence is compression, and compression",
			end:      "be the way to AGI.",
			want:     "Intelligence is compression, and compression follows scaling laws.",
			strategy: StrategyFuzzy,
		},
		{
			name:     "word overlap on both sides",
			page:     `<p>Transformers learn attention patterns across many layers of the network, eventually reaching strong results.</p>`,
			start:    "transformers learn attention pattern across",
			end:      "eventually reaching really strong results",
			want:     "Transformers learn attention patterns across many layers of the network, eventually reaching strong results.",
			strategy: StrategyFuzzy,
		},
		{
			name:     "container fallback",
			page:     `<div><p>Unrelated intro paragraph about cooking pasta.</p><p>Gradient descent updates weights using the loss slope each step.</p></div>`,
			start:    "weights gradient step",
			end:      "slope each time",
			want:     "Gradient descent updates weights using the loss slope each step.",
			strategy: StrategyContainer,
		},
	}

	m := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := buildIndex(t, tt.page)
			res := m.Match(ix, tt.start, tt.end)
			if !res.Found {
				t.Fatalf("expected a match")
			}
			if res.Strategy != tt.strategy {
				t.Errorf("strategy = %s, expected %s", res.Strategy, tt.strategy)
			}
			if got := matched(ix, res); got != tt.want {
				t.Errorf("got %q, expected %q", got, tt.want)
			}
			if res.Confidence <= 0 || res.Confidence > 1 {
				t.Errorf("confidence %v out of range", res.Confidence)
			}
		})
	}
}

func TestTierOrdering(t *testing.T) {
	ix := buildIndex(t, `<p>Some preface text. The quick brown fox leaps over the lazy cat. Trailing words.</p>`)
	m := New(DefaultConfig())

	res := m.Match(ix, "the quick brown fox", "lazy cat.")
	if res.Strategy != StrategyExact {
		t.Fatalf("strategy = %s, expected exact", res.Strategy)
	}

	var container Result
	for _, r := range m.Diagnose(ix, "the quick brown fox", "lazy cat.") {
		if r.Strategy == StrategyContainer {
			container = r.Result
		}
	}
	if !container.Found {
		t.Fatal("container tier should also match this page")
	}
	if container.Start == res.Start && container.End == res.End {
		t.Error("container tier should cover a different span than the exact tier")
	}
	if got := matched(ix, res); got != "The quick brown fox leaps over the lazy cat." {
		t.Errorf("got %q", got)
	}
}

func TestNoFalsePositive(t *testing.T) {
	ix := buildIndex(t, `<p>The weather today is sunny and warm. Nothing else to report here.</p>`)
	res := New(DefaultConfig()).Match(ix, "I'd say rather that 'completely different'", "totally unrelated observations.")
	if res.Found {
		t.Errorf("unexpected match %q via %s", matched(ix, res), res.Strategy)
	}
}

func TestFuzzyRejectsInventedEnd(t *testing.T) {
	ix := buildIndex(t, `<p>The quick brown fox jumps over the lazy dog near the river bank.</p>`)
	m := New(DefaultConfig())

	res := m.Match(ix, "quick brown fox leaps over", "cryptocurrency markets collapsed overnight")
	if res.Found {
		t.Errorf("unexpected match %q via %s (%.2f)", matched(ix, res), res.Strategy, res.Confidence)
	}

	// a verbatim start still completes to the end of its sentence
	res = m.Match(ix, "quick brown fox jumps over", "cryptocurrency markets collapsed overnight")
	if !res.Found || res.Strategy != StrategyFuzzy {
		t.Fatalf("got %+v, expected a fuzzy match", res)
	}
	if got := matched(ix, res); got != "quick brown fox jumps over the lazy dog near the river bank." {
		t.Errorf("got %q", got)
	}
}

func TestShortestRange(t *testing.T) {
	ix := buildIndex(t, `<p>start here then a long winding middle section finish now. start here quickly finish now.</p>`)
	res := New(DefaultConfig()).Match(ix, "start here", "finish now")
	if !res.Found {
		t.Fatal("expected a match")
	}
	if got := matched(ix, res); got != "start here quickly finish now" {
		t.Errorf("got %q, expected the shorter span", got)
	}
}

func TestSearchPairRetriesStarts(t *testing.T) {
	tests := []struct {
		text, s, e string
		start, end int
		ok         bool
	}{
		{"a b a c", "a", "c", 4, 7, true},
		{"x end a y end", "a", "end", 6, 13, true},
		{"end only", "start", "end", 0, 0, false},
		{"start only", "start", "end", 0, 0, false},
		{"ab ab ab", "ab", "ab", 0, 5, true},
	}
	for _, tt := range tests {
		start, end, ok := searchPair(tt.text, tt.s, tt.e)
		if ok != tt.ok || start != tt.start || end != tt.end {
			t.Errorf("searchPair(%q, %q, %q) = %d, %d, %v, expected %d, %d, %v",
				tt.text, tt.s, tt.e, start, end, ok, tt.start, tt.end, tt.ok)
		}
	}
}

func TestIdenticalBoundaries(t *testing.T) {
	ix := buildIndex(t, `<p>See https://example.com/docs for details.</p>`)
	m := New(DefaultConfig())

	res := m.Match(ix, "https://example.com/docs", "https://example.com/docs")
	if !res.Found {
		t.Fatal("expected a single-point match")
	}
	if got := matched(ix, res); got != "https://example.com/docs" {
		t.Errorf("got %q", got)
	}

	// one boundary containing the other
	res = m.Match(ix, "See https://example.com/docs", "example.com")
	if !res.Found {
		t.Fatal("expected a single-point match on the longer phrase")
	}
	if got := matched(ix, res); got != "See https://example.com/docs" {
		t.Errorf("got %q", got)
	}
}

func TestEndInsideStartWord(t *testing.T) {
	ix := buildIndex(t, `<p>Many industries slowed down in winter.</p>`)
	res := New(DefaultConfig()).Match(ix, "Many industries slowed", "in")
	if !res.Found || res.Strategy != StrategyExact {
		t.Fatalf("got %+v, expected an exact match", res)
	}
	if got := matched(ix, res); got != "Many industries slowed down in" {
		t.Errorf("got %q, expected a start/end span", got)
	}
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"many industries slowed", "in", false},
		{"growth in many industries", "in", true},
		{"see https://example.com/docs", "example.com", true},
		{"abc", "abc", true},
		{"abc", "", false},
		{"abcabc abc", "abc", true},
	}
	for _, tt := range tests {
		if got := containsPhrase(tt.s, tt.sub); got != tt.want {
			t.Errorf("containsPhrase(%q, %q) = %v, expected %v", tt.s, tt.sub, got, tt.want)
		}
	}
}

func TestEmptyInputs(t *testing.T) {
	m := New(DefaultConfig())

	// a nil index proves nothing is traversed
	if res := m.Match(nil, "", ""); res.Found || res != (Result{}) {
		t.Errorf("expected zero result, got %+v", res)
	}
	if res := m.Match(nil, "   ", "\t"); res.Found {
		t.Error("whitespace phrases should not match")
	}

	ix := buildIndex(t, `<script>var x = "hello";</script>`)
	if res := m.Match(ix, "hello", "world"); res.Found {
		t.Error("empty index should not match")
	}
	if reports := m.Diagnose(ix, "hello", "world"); reports != nil {
		t.Errorf("expected no reports for empty index, got %d", len(reports))
	}
}

func TestMatchAcrossElements(t *testing.T) {
	ix := buildIndex(t, `<div><div><p>We are <em>finally</em> solving the problem.</p></div></div>`)
	res := New(DefaultConfig()).Match(ix, "We are finally", "the problem.")
	if !res.Found || res.Strategy != StrategyExact {
		t.Fatalf("expected exact match, got %+v", res)
	}
	if got := matched(ix, res); got != "We are finally solving the problem." {
		t.Errorf("got %q", got)
	}
}

func TestDiagnose(t *testing.T) {
	ix := buildIndex(t, `<p>He said "hello world" and left the room.</p>`)
	reports := New(DefaultConfig()).Diagnose(ix, "He said “hello world”", "left the room.")
	if len(reports) != 6 {
		t.Fatalf("got %d reports, expected 6", len(reports))
	}
	byStrategy := map[Strategy]TierReport{}
	for _, r := range reports {
		byStrategy[r.Strategy] = r
	}
	if r := byStrategy[StrategyExact]; !r.Ran || r.Result.Found {
		t.Errorf("exact: %+v", r)
	}
	if r := byStrategy[StrategyNormalized]; !r.Ran || !r.Result.Found {
		t.Errorf("normalized: %+v", r)
	}
	if r := byStrategy[StrategyURL]; r.Ran {
		t.Errorf("url tier should be skipped for non-url phrases")
	}
}

func TestTokenize(t *testing.T) {
	toks := tokenize("it is naïve, ok? yes", 3)
	var words []string
	for _, tk := range toks {
		words = append(words, tk.text)
	}
	if got := strings.Join(words, ","); got != "naïve,yes" {
		t.Errorf("got %q", got)
	}
	if toks[0].start != 6 || toks[0].end != 12 {
		t.Errorf("naïve at [%d,%d)", toks[0].start, toks[0].end)
	}
}

func TestSentenceEnd(t *testing.T) {
	tests := []struct {
		text        string
		from, limit int
		want        int
	}{
		{"abc def. ghi", 0, 12, 8},
		{"abc 3.5 def! x", 0, 14, 12},
		{`he said "go." then`, 0, 18, 13},
		{"no terminator here  ", 0, 20, 18},
	}
	for _, tt := range tests {
		if got := sentenceEnd(tt.text, tt.from, tt.limit); got != tt.want {
			t.Errorf("sentenceEnd(%q) = %d, expected %d", tt.text, got, tt.want)
		}
	}
}
