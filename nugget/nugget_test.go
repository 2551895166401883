package nugget

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
	}{
		{"tool", TypeTool},
		{"Tool", TypeTool},
		{"media", TypeMedia},
		{"aha! moments", TypeAhaMoment},
		{"aha-moment", TypeAhaMoment},
		{"Aha! Moment", TypeAhaMoment},
		{"analogy", TypeAnalogy},
		{"model", TypeModel},
		{"mental_model", TypeModel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if err != nil {
				t.Fatalf("ParseType(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("got %v, expected %v", got, tt.expected)
			}
		})
	}

	if _, err := ParseType("explanation"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestTypeStrings(t *testing.T) {
	for _, typ := range Types {
		if !typ.Valid() {
			t.Errorf("%d should be valid", typ)
		}
		parsed, err := ParseType(typ.String())
		if err != nil || parsed != typ {
			t.Errorf("String %q does not parse back: %v", typ.String(), err)
		}
		if typ.Label() == "" {
			t.Errorf("%v has no label", typ)
		}
	}
	if Type(0).Valid() {
		t.Error("zero type should be invalid")
	}
}

func TestNuggetJSON(t *testing.T) {
	in := `{"type":"analogy","startContent":"Think of it","endContent":"like a river."}`
	var n Nugget
	if err := json.Unmarshal([]byte(in), &n); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if n.Type != TypeAnalogy || n.StartContent != "Think of it" || n.EndContent != "like a river." {
		t.Errorf("unexpected nugget %+v", n)
	}

	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != in {
		t.Errorf("got %s, expected %s", out, in)
	}

	if err := json.Unmarshal([]byte(`{"type":"bogus"}`), &n); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestKey(t *testing.T) {
	a := Nugget{Type: TypeTool, StartContent: "It’s a  tool", EndContent: "Done."}
	b := Nugget{Type: TypeMedia, StartContent: "it's a tool", EndContent: "done."}
	c := Nugget{Type: TypeTool, StartContent: "It’s a tool", EndContent: "Finished."}

	if a.Key() != b.Key() {
		t.Error("normalized-equal boundaries should share a key")
	}
	if a.Key() == c.Key() {
		t.Error("different end phrases should give different keys")
	}
	if a.Key() != a.Key() {
		t.Error("key is not stable")
	}
	if len(a.Key()) != 36 {
		t.Errorf("unexpected key format %q", a.Key())
	}

	// The separator keeps the pair unambiguous.
	d := Nugget{StartContent: "ab", EndContent: "c"}
	e := Nugget{StartContent: "a", EndContent: "bc"}
	if d.Key() == e.Key() {
		t.Error("split point should matter")
	}
}

func TestBlankAndValidate(t *testing.T) {
	if !(Nugget{Type: TypeTool, StartContent: "", EndContent: ""}).Blank() {
		t.Error("empty nugget should be blank")
	}
	if !(Nugget{Type: TypeTool, StartContent: "x", EndContent: "  \n"}).Blank() {
		t.Error("whitespace end should be blank")
	}
	if (Nugget{Type: TypeTool, StartContent: "x", EndContent: "y"}).Blank() {
		t.Error("unexpected blank")
	}
	if err := (Nugget{StartContent: "x", EndContent: "y"}).Validate(); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if err := (Nugget{Type: TypeModel}).Validate(); err != nil {
		t.Errorf("blank boundaries should validate: %v", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusHighlighted.String() != "Highlighted on page" {
		t.Errorf("got %q", StatusHighlighted.String())
	}
	if StatusNotFound.String() != "Could not be located" {
		t.Errorf("got %q", StatusNotFound.String())
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		count   int
		dropped int
	}{
		{
			name:  "object",
			input: `{"golden_nuggets":[{"type":"tool","startContent":"a","endContent":"b"}]}`,
			count: 1,
		},
		{
			name:  "bare array",
			input: `[{"type":"media","startContent":"a","endContent":"b"},{"type":"model","startContent":"c","endContent":"d"}]`,
			count: 2,
		},
		{
			name:  "code fence with prose",
			input: "Here you go:\n```json\n{\"golden_nuggets\":[{\"type\":\"analogy\",\"startContent\":\"a\",\"endContent\":\"b\"}]}\n```\nEnjoy.",
			count: 1,
		},
		{
			name:  "snake case",
			input: `{"golden_nuggets":[{"type":"aha! moments","start_content":"a","end_content":"b"}]}`,
			count: 1,
		},
		{
			name:    "unknown type dropped",
			input:   `{"golden_nuggets":[{"type":"explanation","startContent":"a","endContent":"b"},{"type":"tool","startContent":"c","endContent":"d"}]}`,
			count:   1,
			dropped: 1,
		},
		{
			name:  "empty list",
			input: `{"golden_nuggets":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := DecodeResponse(tt.input)
			if err != nil {
				t.Fatalf("DecodeResponse failed: %v", err)
			}
			if len(batch.Nuggets) != tt.count {
				t.Errorf("got %d nuggets, expected %d", len(batch.Nuggets), tt.count)
			}
			if len(batch.Dropped) != tt.dropped {
				t.Errorf("got %d dropped, expected %d", len(batch.Dropped), tt.dropped)
			}
			for _, n := range batch.Nuggets {
				if err := n.Validate(); err != nil {
					t.Errorf("decoded invalid nugget: %v", err)
				}
			}
		})
	}
}

func TestDecodeResponseFields(t *testing.T) {
	batch, err := DecodeResponse(`{"golden_nuggets":[{"type":"aha! moments","start_content":"Start here","end_content":"end there."}]}`)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	n := batch.Nuggets[0]
	if n.Type != TypeAhaMoment || n.StartContent != "Start here" || n.EndContent != "end there." {
		t.Errorf("unexpected nugget %+v", n)
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	if _, err := DecodeResponse("no json at all"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
	if _, err := DecodeResponse(`{"golden_nuggets": [`); err == nil {
		t.Error("expected error for truncated JSON")
	}

	batch, err := Decode(strings.NewReader(`[{"type":"bogus","startContent":"a","endContent":"b"}]`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(batch.Dropped) != 1 || !errors.Is(batch.Dropped[0], ErrUnknownType) {
		t.Errorf("expected one unknown type drop, got %v", batch.Dropped)
	}
}
