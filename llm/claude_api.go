package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	messagesURL      = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
)

// ClaudeAPI talks to the Anthropic messages endpoint.
type ClaudeAPI struct {
	key       string
	model     string
	endpoint  string
	maxTokens int
	client    *http.Client
}

// NewClaudeAPI creates the provider. An empty key is read from
// ANTHROPIC_API_KEY.
func NewClaudeAPI(key string) *ClaudeAPI {
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &ClaudeAPI{
		key:       key,
		model:     defaultModel,
		endpoint:  messagesURL,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{},
	}
}

func (c *ClaudeAPI) WithModel(model string) *ClaudeAPI {
	c.model = model
	return c
}

// WithEndpoint points the provider at a different messages URL.
func (c *ClaudeAPI) WithEndpoint(url string) *ClaudeAPI {
	c.endpoint = url
	return c
}

// WithMaxTokens bounds the reply length. Nugget lists for long pages can
// need more than the default.
func (c *ClaudeAPI) WithMaxTokens(n int) *ClaudeAPI {
	if n > 0 {
		c.maxTokens = n
	}
	return c
}

func (c *ClaudeAPI) Name() string    { return "claude-api" }
func (c *ClaudeAPI) Available() bool { return c.key != "" }

// APIError is a non-200 reply from the messages endpoint.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send posts the whole conversation and returns the text blocks of the reply.
func (c *ClaudeAPI) Send(ctx context.Context, system string, turns []Turn) (string, error) {
	payload := messagesRequest{Model: c.model, MaxTokens: c.maxTokens, System: system}
	for _, t := range turns {
		payload.Messages = append(payload.Messages, wireMessage{Role: string(t.Role), Content: t.Text})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.key)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, raw)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if out.StopReason == "max_tokens" {
		return sb.String(), fmt.Errorf("%w at %d tokens", ErrTruncated, c.maxTokens)
	}
	return sb.String(), nil
}

func decodeAPIError(status int, raw []byte) error {
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		return &APIError{Status: status, Type: er.Error.Type, Message: er.Error.Message}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
}
