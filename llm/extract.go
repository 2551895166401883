package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nuggets/logger"
	"nuggets/normalize"
	"nuggets/nugget"
)

const (
	// DefaultMaxChars bounds the page text sent with a prompt.
	DefaultMaxChars = 60000
	maxRetries      = 2
)

const extractSystemPrompt = `You find golden nuggets in web pages: short passages a curious reader would want to keep.

Each nugget has one of these types:
- "tool": a concrete tool, library, technique or command worth trying
- "media": a book, paper, talk, video or podcast worth following up
- "aha! moments": a surprising insight that reframes the topic
- "analogy": a comparison that makes a hard idea click
- "model": a mental model or framework for thinking

For every nugget give the first few words of the passage as "startContent" and the last few words as "endContent". Both must be copied verbatim from the page text, between three and eight words each, and the end must come after the start.

Respond with JSON only:
{"golden_nuggets": [{"type": "tool", "startContent": "...", "endContent": "..."}]}

Return {"golden_nuggets": []} when the page has nothing worth keeping.`

// Extractor asks a model for the nuggets in a page.
type Extractor struct {
	client   *Client
	maxChars int
}

// NewExtractor creates an extractor. A maxChars of zero uses DefaultMaxChars.
func NewExtractor(client *Client, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{client: client, maxChars: maxChars}
}

// Extract returns the nuggets the model found in text. Up to maxRetries
// follow-up turns are sent when the reply cannot be decoded or quotes
// boundaries the page does not contain; the best batch seen is returned.
func (e *Extractor) Extract(ctx context.Context, title, text string) (*nugget.Batch, error) {
	conv, err := e.client.Start(extractSystemPrompt)
	if err != nil {
		return nil, err
	}
	page := normalize.Advanced(text)

	prompt := buildPrompt(title, Clip(text, e.maxChars))
	var best *nugget.Batch
	bestFound := -1
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		response, err := conv.Ask(ctx, prompt)
		if err != nil && !errors.Is(err, ErrTruncated) {
			return nil, fmt.Errorf("LLM completion: %w", err)
		}

		batch, decodeErr := nugget.DecodeResponse(response)
		if decodeErr != nil {
			lastErr = decodeErr
			logger.Debug("extract attempt %d: %v", attempt, decodeErr)
			prompt = fmt.Sprintf("Invalid JSON: %v. Please respond with valid JSON only.", decodeErr)
			continue
		}

		missing := missingBoundaries(batch, page)
		if found := len(batch.Nuggets) - len(missing); found > bestFound {
			best, bestFound = batch, found
		}
		if len(missing) == 0 {
			return batch, nil
		}
		logger.Debug("extract attempt %d: %d nuggets quote text not on the page", attempt, len(missing))
		prompt = feedback(missing)
	}

	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("decoding nuggets: %w", lastErr)
}

func buildPrompt(title, text string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("TITLE: ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	sb.WriteString("PAGE TEXT:\n")
	sb.WriteString(text)
	return sb.String()
}

// missingBoundaries lists nuggets whose start phrase is absent from page.
// End phrases are not checked since the matcher can complete them.
func missingBoundaries(batch *nugget.Batch, page string) []nugget.Nugget {
	var missing []nugget.Nugget
	for _, n := range batch.Nuggets {
		if n.Blank() || !strings.Contains(page, normalize.Advanced(n.StartContent)) {
			missing = append(missing, n)
		}
	}
	return missing
}

func feedback(missing []nugget.Nugget) string {
	var sb strings.Builder
	sb.WriteString("These startContent values do not appear verbatim in the page text:\n")
	for _, n := range missing {
		fmt.Fprintf(&sb, "- %q\n", n.StartContent)
	}
	sb.WriteString("\nCopy the boundaries exactly from the page and respond with the corrected JSON.")
	return sb.String()
}
