package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nuggets/nugget"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	nuggets := []nugget.Nugget{
		{Type: nugget.TypeAhaMoment, StartContent: "Intelligence is", EndContent: "scaling laws."},
		{Type: nugget.TypeTool, StartContent: "Use the grep", EndContent: "quickly."},
	}

	if _, err := s.Get(ctx, "https://a.test/", "text"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("got %v, expected ErrCacheMiss", err)
	}
	if err := s.Put(ctx, "https://a.test/", "text", "claude-api", nuggets); err != nil {
		t.Fatal(err)
	}

	e, err := s.Get(ctx, "https://a.test/", "text")
	if err != nil {
		t.Fatal(err)
	}
	if e.Provider != "claude-api" || e.ExtractedAt.IsZero() {
		t.Errorf("got %+v", e)
	}
	if len(e.Nuggets) != 2 {
		t.Fatalf("got %d nuggets, expected 2", len(e.Nuggets))
	}
	for i := range nuggets {
		if e.Nuggets[i] != nuggets[i] {
			t.Errorf("nugget %d: got %+v, expected %+v", i, e.Nuggets[i], nuggets[i])
		}
	}
}

func TestChangedText(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	one := []nugget.Nugget{{Type: nugget.TypeMedia, StartContent: "a", EndContent: "b"}}

	if err := s.Put(ctx, "u", "old text", "p", one); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "u", "new text"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("changed text should miss, got %v", err)
	}
	if err := s.Put(ctx, "u", "new text", "p", nil); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("got %d pages, expected 1 after replacing", n)
	}
	e, err := s.Get(ctx, "u", "new text")
	if err != nil || len(e.Nuggets) != 0 {
		t.Errorf("got %+v, %v", e, err)
	}
}

func TestDelete(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	s.Put(ctx, "u", "t", "p", []nugget.Nugget{{Type: nugget.TypeModel, StartContent: "a", EndContent: "b"}})
	if err := s.Delete(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "u", "t"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("got %v, expected ErrCacheMiss", err)
	}
}

func TestPutRejectsUnknownType(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	err := s.Put(ctx, "u", "t", "p", []nugget.Nugget{{Type: nugget.Type(42)}})
	if !errors.Is(err, nugget.ErrUnknownType) {
		t.Errorf("got %v, expected ErrUnknownType", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("failed put should roll back, %d pages stored", n)
	}
}

func TestHash(t *testing.T) {
	if Hash("a") == Hash("b") || Hash("a") != Hash("a") || len(Hash("")) != 64 {
		t.Error("unexpected hash behaviour")
	}
}
