// Package llm asks a language model for the golden nuggets in a page. An
// extraction is one Conversation: the page goes out as the first user turn,
// corrections follow as later turns, and every reply is kept so a provider
// always sees the whole exchange.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"nuggets/logger"
)

var (
	// ErrNoProvider is returned when no provider can be reached.
	ErrNoProvider = errors.New("no LLM provider available")
	// ErrTruncated comes with the partial reply when the model hit its token limit.
	ErrTruncated = errors.New("response truncated")
	// ErrSessionCollision is returned when claude CLI session ids keep colliding.
	ErrSessionCollision = errors.New("session ID collision")
)

// Role says who wrote a turn.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	Text string
}

// Provider is a model backend. Send receives the full exchange so far,
// ending with a user turn, and returns the model's next reply.
type Provider interface {
	Name() string
	Available() bool
	Send(ctx context.Context, system string, turns []Turn) (string, error)
}

// Options selects and configures the default providers.
type Options struct {
	Provider string // preferred provider name, empty for first available
	Model    string
	APIKey   string // falls back to ANTHROPIC_API_KEY
}

// Client picks the provider an extraction runs on.
type Client struct {
	providers []Provider
	preferred Provider
}

// NewClient creates a client trying providers in order.
func NewClient(providers ...Provider) *Client {
	return &Client{providers: providers}
}

// NewDefaultClient builds a client over the Anthropic API and the claude
// CLI, preferring opts.Provider when it is available.
func NewDefaultClient(opts Options) *Client {
	api := NewClaudeAPI(opts.APIKey)
	cli := NewClaudeCode()
	if opts.Model != "" {
		api.WithModel(opts.Model)
		cli.WithModel(opts.Model)
	}
	c := NewClient(api, cli)
	if opts.Provider != "" && !c.Prefer(opts.Provider) {
		logger.Warn("llm provider %q unavailable, falling back", opts.Provider)
	}
	return c
}

// Prefer pins the named provider if it is available.
func (c *Client) Prefer(name string) bool {
	for _, p := range c.providers {
		if p.Name() == name && p.Available() {
			c.preferred = p
			return true
		}
	}
	return false
}

// Provider returns the pinned provider, else the first available one, or nil.
func (c *Client) Provider() Provider {
	if c.preferred != nil && c.preferred.Available() {
		return c.preferred
	}
	for _, p := range c.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// Start opens a conversation on the active provider under system.
func (c *Client) Start(system string) (*Conversation, error) {
	p := c.Provider()
	if p == nil {
		return nil, ErrNoProvider
	}
	return &Conversation{provider: p, system: system}, nil
}

// Conversation is a running exchange with one provider.
type Conversation struct {
	provider Provider
	system   string
	turns    []Turn
}

// Provider returns the backend the conversation runs on.
func (cv *Conversation) Provider() Provider { return cv.provider }

// Turns returns the exchange so far.
func (cv *Conversation) Turns() []Turn { return cv.turns }

// Ask sends prompt as the next user turn. The reply is recorded before it
// is returned; a truncated reply is recorded too and comes with
// ErrTruncated. On any other error the prompt is dropped again, so the
// conversation can be retried.
func (cv *Conversation) Ask(ctx context.Context, prompt string) (string, error) {
	cv.turns = append(cv.turns, Turn{Role: User, Text: prompt})
	reply, err := cv.provider.Send(ctx, cv.system, cv.turns)
	if err != nil && !errors.Is(err, ErrTruncated) {
		cv.turns = cv.turns[:len(cv.turns)-1]
		return "", fmt.Errorf("%s: %w", cv.provider.Name(), err)
	}
	cv.turns = append(cv.turns, Turn{Role: Assistant, Text: reply})
	return reply, err
}

// Clip shortens text to at most max bytes, cutting at the last space when
// there is one and marking the cut.
func Clip(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if i := strings.LastIndexAny(text[:cut], " \n"); i > cut/2 {
		cut = i
	}
	return text[:cut] + "\n... [truncated]"
}
