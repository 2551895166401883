package llm

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/google/uuid"
)

// ClaudeCode implements Provider by shelling out to the claude CLI,
// so no API key is needed when the CLI is logged in.
type ClaudeCode struct {
	binary  string
	cliPath string
	model   string
}

// NewClaudeCode creates a new Claude Code provider.
func NewClaudeCode() *ClaudeCode {
	return &ClaudeCode{binary: "claude"}
}

// WithModel passes --model to every invocation.
func (c *ClaudeCode) WithModel(model string) *ClaudeCode {
	c.model = model
	return c
}

// WithBinary overrides the executable looked up on PATH.
func (c *ClaudeCode) WithBinary(name string) *ClaudeCode {
	c.binary = name
	c.cliPath = ""
	return c
}

func (c *ClaudeCode) Name() string { return "claude-code" }

// Available checks if the claude CLI is installed and accessible.
func (c *ClaudeCode) Available() bool {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return false
	}
	c.cliPath = path
	return true
}

// Send runs the CLI once per user turn. A single turn is a plain --print
// call; longer exchanges are replayed into a fresh session, which already
// holds the assistant turns, so those are skipped.
func (c *ClaudeCode) Send(ctx context.Context, sys string, turns []Turn) (string, error) {
	var prompts []string
	for _, t := range turns {
		if t.Role == User {
			prompts = append(prompts, t.Text)
		}
	}
	switch len(prompts) {
	case 0:
		return "", nil
	case 1:
		return c.exec(ctx, c.args("", sys, prompts[0]))
	}

	const attempts = 3
	for i := 0; i < attempts; i++ {
		out, err := c.replay(ctx, sys, prompts)
		if err == nil {
			return out, nil
		}
		var cliErr *CLIError
		if errors.As(err, &cliErr) && strings.Contains(cliErr.Stderr, "already in use") {
			continue
		}
		return "", err
	}
	return "", &CLIError{Err: ErrSessionCollision, Stderr: "session ID collision after max retries"}
}

func (c *ClaudeCode) replay(ctx context.Context, sys string, prompts []string) (string, error) {
	session := uuid.New().String()
	var last string
	for i, prompt := range prompts {
		s := ""
		if i == 0 {
			s = sys
		}
		out, err := c.exec(ctx, c.args(session, s, prompt))
		if err != nil {
			return "", err
		}
		last = out
	}
	return last, nil
}

func (c *ClaudeCode) args(session, sys, prompt string) []string {
	args := []string{"--print"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if session != "" {
		args = append(args, "--session-id", session)
	}
	if sys != "" {
		args = append(args, "--system-prompt", sys)
	}
	return append(args, prompt)
}

func (c *ClaudeCode) exec(ctx context.Context, args []string) (string, error) {
	path := c.cliPath
	if path == "" {
		path = c.binary
	}
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", &CLIError{Err: err, Stderr: stderr.String()}
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CLIError wraps CLI execution errors with stderr output.
type CLIError struct {
	Err    error
	Stderr string
}

func (e *CLIError) Error() string {
	if e.Stderr != "" {
		return e.Err.Error() + ": " + e.Stderr
	}
	return e.Err.Error()
}

func (e *CLIError) Unwrap() error { return e.Err }
