package boundary

import (
	"github.com/PuerkitoBio/goquery"

	"nuggets/normalize"
	"nuggets/textindex"
)

// container scores block elements by start/end word overlap and returns the
// best one whole. Each side must reach half the threshold so a container
// matching only the start phrase cannot win.
func (m *Matcher) container(ix *textindex.Index, q query) (Result, bool) {
	if ix.Root == nil {
		return Result{}, false
	}
	startWords := normalize.Words(q.start, m.cfg.MinWordLength)
	endWords := normalize.Words(q.end, m.cfg.MinWordLength)
	if len(startWords) == 0 && len(endWords) == 0 {
		return Result{}, false
	}

	floor := m.cfg.ContainerThreshold / 2
	var best Result
	bestScore := 0.0

	doc := goquery.NewDocumentFromNode(ix.Root)
	doc.Find(m.cfg.ContainerSelector).Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		start, end, ok := ix.SpanRange(node)
		if !ok {
			return
		}
		set := wordSet(normalize.Words(ix.Text(start, end), m.cfg.MinWordLength))

		score, sides := 0.0, 0
		for _, words := range [][]string{startWords, endWords} {
			if len(words) == 0 {
				continue
			}
			o := overlap(words, set)
			if o < floor {
				return
			}
			score += o
			sides++
		}
		score /= float64(sides)
		if score < m.cfg.ContainerThreshold {
			return
		}
		if score > bestScore || (score == bestScore && end-start < best.Len()) {
			bestScore = score
			best = Result{
				Found:      true,
				Start:      start,
				End:        end,
				Strategy:   StrategyContainer,
				Confidence: score * 0.6,
				Container:  node,
			}
		}
	})
	return best, true
}
