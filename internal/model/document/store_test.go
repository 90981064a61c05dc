package document

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	doc, ok := store.FindByID("news-legislation-tracker")
	if !ok {
		t.Fatal("expected seeded document")
	}
	if doc.Kind != KindWeeklyNewsItem {
		t.Fatalf("unexpected kind: %s", doc.Kind)
	}

	if _, ok := store.FindByID("missing"); ok {
		t.Fatal("expected miss for unknown id")
	}
}

func TestMemoryStoreAssignsIDs(t *testing.T) {
	store := NewMemoryStore([]Document{{Title: "No ID"}})

	items := store.List()
	if items[0].ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	body := `[{"id":"a","kind":"blog_post_chunk","title":"Civic Tech","url":"https://example.org/a"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	store, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile err: %v", err)
	}
	if got := store.List(); len(got) != 1 || got[0].Title != "Civic Tech" {
		t.Fatalf("unexpected documents: %+v", got)
	}
}

func TestLoadFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected decode error")
	}
}
