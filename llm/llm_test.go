package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"nuggets/nugget"
)

// scripted replies with canned responses in order and records what it saw.
type scripted struct {
	name      string
	available bool
	replies   []string
	err       error
	calls     [][]Turn
}

func (s *scripted) Name() string    { return s.name }
func (s *scripted) Available() bool { return s.available }

func (s *scripted) Send(ctx context.Context, system string, turns []Turn) (string, error) {
	s.calls = append(s.calls, append([]Turn(nil), turns...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no more replies")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func TestClientSelection(t *testing.T) {
	down := &scripted{name: "down"}
	up := &scripted{name: "up", available: true}
	c := NewClient(down, up)

	if p := c.Provider(); p == nil || p.Name() != "up" {
		t.Fatalf("got %v, expected up", p)
	}
	if c.Prefer("down") {
		t.Error("an unavailable provider should not become preferred")
	}

	other := &scripted{name: "other", available: true}
	c = NewClient(up, other)
	if !c.Prefer("other") || c.Provider() != other {
		t.Error("an available provider should become preferred")
	}

	if _, err := NewClient(down).Start("sys"); !errors.Is(err, ErrNoProvider) {
		t.Errorf("got %v, expected ErrNoProvider", err)
	}
}

func TestConversation(t *testing.T) {
	p := &scripted{name: "s", available: true, replies: []string{"one", "two"}}
	conv, err := NewClient(p).Start("sys")
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"one", "two"} {
		got, err := conv.Ask(context.Background(), "q")
		if err != nil || got != want {
			t.Errorf("ask %d: got %q, %v", i, got, err)
		}
	}
	if len(conv.Turns()) != 4 || conv.Turns()[3].Role != Assistant {
		t.Errorf("got turns %+v", conv.Turns())
	}
	if len(p.calls[1]) != 3 {
		t.Errorf("second send saw %d turns, expected 3", len(p.calls[1]))
	}

	p.err = errors.New("down")
	if _, err := conv.Ask(context.Background(), "q"); err == nil || !strings.Contains(err.Error(), "s: down") {
		t.Errorf("got %v", err)
	}
	if len(conv.Turns()) != 4 {
		t.Errorf("failed prompt should be dropped, got %d turns", len(conv.Turns()))
	}
}

func TestConversationKeepsTruncated(t *testing.T) {
	p := &truncating{}
	conv, _ := NewClient(p).Start("")
	got, err := conv.Ask(context.Background(), "q")
	if !errors.Is(err, ErrTruncated) || got != "partial" {
		t.Errorf("got %q, %v", got, err)
	}
	if len(conv.Turns()) != 2 {
		t.Errorf("truncated reply should be recorded, got %d turns", len(conv.Turns()))
	}
}

type truncating struct{}

func (truncating) Name() string    { return "t" }
func (truncating) Available() bool { return true }
func (truncating) Send(context.Context, string, []Turn) (string, error) {
	return "partial", ErrTruncated
}

func TestClip(t *testing.T) {
	tests := []struct {
		text string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"short", 0, "short"},
		{"alpha beta gamma", 12, "alpha beta\n... [truncated]"},
		{"ééé", 3, "é\n... [truncated]"},
	}
	for _, tt := range tests {
		if got := Clip(tt.text, tt.max); got != tt.want {
			t.Errorf("Clip(%q, %d) = %q, expected %q", tt.text, tt.max, got, tt.want)
		}
	}
}

func TestClaudeAPI(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("api key %q", r.Header.Get("x-api-key"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	api := NewClaudeAPI("key").WithModel("test-model").WithEndpoint(srv.URL)
	out, err := api.Send(context.Background(), "sys", []Turn{
		{Role: User, Text: "a"},
		{Role: Assistant, Text: "b"},
		{Role: User, Text: "c"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "part one part two" {
		t.Errorf("got %q", out)
	}
	if got.Model != "test-model" || got.System != "sys" || len(got.Messages) != 3 || got.Messages[1].Role != "assistant" {
		t.Errorf("request %+v", got)
	}
}

func TestClaudeAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
		is     error
	}{
		{"api message", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"bad model"}}`, "bad model", nil},
		{"raw body", http.StatusInternalServerError, "boom", "boom", nil},
		{"truncated", http.StatusOK, `{"content":[{"type":"text","text":"{\"golden"}],"stop_reason":"max_tokens"}`, "truncated", ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClaudeAPI("key").WithEndpoint(srv.URL).Send(context.Background(), "", []Turn{{Role: User, Text: "x"}})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, expected %q", err, tt.want)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("got %v, expected %v", err, tt.is)
			}
			var apiErr *APIError
			if tt.status != http.StatusOK && (!errors.As(err, &apiErr) || apiErr.Status != tt.status) {
				t.Errorf("got %v, expected an APIError with status %d", err, tt.status)
			}
		})
	}
}

func TestClaudeAPIAvailable(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if NewClaudeAPI("").Available() {
		t.Error("no key should be unavailable")
	}
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	if !NewClaudeAPI("").Available() {
		t.Error("environment key should be picked up")
	}
}

// fakeCLI writes a shell script that echoes its arguments.
func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	path := filepath.Join(t.TempDir(), "fake-claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClaudeCodeArgs(t *testing.T) {
	cli := NewClaudeCode().WithBinary(fakeCLI(t, `echo "$@"`)).WithModel("m1")
	if !cli.Available() {
		t.Fatal("fake binary should be available")
	}
	out, err := cli.Send(context.Background(), "sys", []Turn{{Role: User, Text: "prompt"}})
	if err != nil {
		t.Fatal(err)
	}
	if out != "--print --model m1 --system-prompt sys prompt" {
		t.Errorf("got %q", out)
	}
}

func TestClaudeCodeConversation(t *testing.T) {
	cli := NewClaudeCode().WithBinary(fakeCLI(t, `echo "$@"`))
	cli.Available()
	out, err := cli.Send(context.Background(), "sys", []Turn{
		{Role: User, Text: "first"},
		{Role: Assistant, Text: "ignored"},
		{Role: User, Text: "second"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "--system-prompt") {
		t.Errorf("system prompt should only go with the first turn: %q", out)
	}
	if !strings.Contains(out, "--session-id") || !strings.HasSuffix(out, "second") {
		t.Errorf("got %q", out)
	}
}

func TestClaudeCodeCollision(t *testing.T) {
	cli := NewClaudeCode().WithBinary(fakeCLI(t, `echo "session already in use" >&2; exit 1`))
	cli.Available()
	_, err := cli.Send(context.Background(), "", []Turn{
		{Role: User, Text: "x"},
		{Role: Assistant, Text: "y"},
		{Role: User, Text: "z"},
	})
	if !errors.Is(err, ErrSessionCollision) {
		t.Errorf("got %v, expected ErrSessionCollision", err)
	}

	var cliErr *CLIError
	failing := NewClaudeCode().WithBinary(fakeCLI(t, `echo "bad flag" >&2; exit 2`))
	failing.Available()
	if _, err := failing.Send(context.Background(), "", []Turn{{Role: User, Text: "x"}}); !errors.As(err, &cliErr) || !strings.Contains(cliErr.Stderr, "bad flag") {
		t.Errorf("got %v", err)
	}
}

func TestClaudeCodeMissing(t *testing.T) {
	if NewClaudeCode().WithBinary("nuggets-no-such-binary").Available() {
		t.Error("missing binary should be unavailable")
	}
}

const page = "Use the grep tool to search text quickly. Intelligence is compression, and compression follows scaling laws."

func TestExtract(t *testing.T) {
	p := &scripted{name: "s", available: true, replies: []string{
		"Here you go:\n```json\n" + `{"golden_nuggets":[{"type":"tool","startContent":"Use the grep tool","endContent":"search text quickly."}]}` + "\n```",
	}}
	batch, err := NewExtractor(NewClient(p), 0).Extract(context.Background(), "Title", page)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Nuggets) != 1 || batch.Nuggets[0].Type != nugget.TypeTool {
		t.Errorf("got %+v", batch.Nuggets)
	}
	if len(p.calls) != 1 || !strings.Contains(p.calls[0][0].Text, "TITLE: Title") {
		t.Errorf("unexpected calls %+v", p.calls)
	}
}

func TestExtractRetries(t *testing.T) {
	p := &scripted{name: "s", available: true, replies: []string{
		"I could not find anything.",
		`[{"type":"model","startContent":"Invented opening words","endContent":"laws."}]`,
		`[{"type":"model","start_content":"Intelligence is compression","end_content":"scaling laws."}]`,
	}}
	batch, err := NewExtractor(NewClient(p), 0).Extract(context.Background(), "", page)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Nuggets) != 1 || batch.Nuggets[0].StartContent != "Intelligence is compression" {
		t.Errorf("got %+v", batch.Nuggets)
	}
	if len(p.calls) != 3 {
		t.Fatalf("got %d calls, expected 3", len(p.calls))
	}
	last := p.calls[2]
	if len(last) != 5 || !strings.Contains(last[4].Text, "Invented opening words") {
		t.Errorf("feedback not carried into the conversation: %+v", last)
	}
}

func TestExtractGivesUp(t *testing.T) {
	p := &scripted{name: "s", available: true, replies: []string{"no", "still no", "never"}}
	if _, err := NewExtractor(NewClient(p), 0).Extract(context.Background(), "", page); !errors.Is(err, nugget.ErrNoJSON) {
		t.Errorf("got %v, expected ErrNoJSON", err)
	}
	if _, err := NewExtractor(NewClient(), 0).Extract(context.Background(), "", page); !errors.Is(err, ErrNoProvider) {
		t.Errorf("got %v, expected ErrNoProvider", err)
	}
}

func TestExtractTruncatesText(t *testing.T) {
	p := &scripted{name: "s", available: true, replies: []string{`{"golden_nuggets":[]}`}}
	long := strings.Repeat("word ", 100)
	if _, err := NewExtractor(NewClient(p), 50).Extract(context.Background(), "", long); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p.calls[0][0].Text, "[truncated]") {
		t.Error("long text should be truncated")
	}
}
