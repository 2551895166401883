package nugget

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoJSON is returned when a response contains no JSON payload.
var ErrNoJSON = errors.New("no JSON object or array in response")

// DecodeError describes a response entry that was dropped.
type DecodeError struct {
	Index int
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("nugget %d (%q): %v", e.Index, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Batch is the well-formed result of decoding a model response.
type Batch struct {
	Nuggets []Nugget
	Dropped []*DecodeError
}

// rawNugget accepts both camelCase and snake_case boundary keys.
type rawNugget struct {
	Type         string `json:"type"`
	StartContent string `json:"startContent"`
	EndContent   string `json:"endContent"`
	StartSnake   string `json:"start_content"`
	EndSnake     string `json:"end_content"`
}

type rawResponse struct {
	GoldenNuggets []rawNugget `json:"golden_nuggets"`
	Nuggets       []rawNugget `json:"nuggets"`
}

// Decode reads a JSON nugget payload from r.
func Decode(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading nuggets: %w", err)
	}
	return DecodeResponse(string(data))
}

// DecodeResponse extracts nuggets from a model response. The payload may be
// an object with a "golden_nuggets" array or a bare array, optionally inside
// a code fence or after leading prose. Entries with unknown types are
// dropped and listed in Batch.Dropped.
func DecodeResponse(s string) (*Batch, error) {
	payload, err := extractJSON(s)
	if err != nil {
		return nil, err
	}

	var entries []rawNugget
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &entries); err != nil {
			return nil, fmt.Errorf("parsing nugget array: %w", err)
		}
	} else {
		var resp rawResponse
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			return nil, fmt.Errorf("parsing nugget response: %w", err)
		}
		entries = resp.GoldenNuggets
		if entries == nil {
			entries = resp.Nuggets
		}
	}

	batch := &Batch{}
	for i, raw := range entries {
		t, err := ParseType(raw.Type)
		if err != nil {
			batch.Dropped = append(batch.Dropped, &DecodeError{Index: i, Value: raw.Type, Err: err})
			continue
		}
		n := Nugget{
			Type:         t,
			StartContent: firstNonEmpty(raw.StartContent, raw.StartSnake),
			EndContent:   firstNonEmpty(raw.EndContent, raw.EndSnake),
		}
		batch.Nuggets = append(batch.Nuggets, n)
	}
	return batch, nil
}

// extractJSON strips code fences and surrounding prose.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
