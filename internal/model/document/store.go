package document

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Store exposes the searchable corpus.
type Store interface {
	List() []Document
	FindByID(id string) (Document, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Document
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied documents.
// Documents without an ID get a random one.
func NewMemoryStore(items []Document) *MemoryStore {
	copied := append([]Document(nil), items...)
	for i := range copied {
		if copied[i].ID == "" {
			copied[i].ID = uuid.NewString()
		}
	}
	return &MemoryStore{items: copied}
}

// LoadFile reads a JSON array of documents exported from the CMS.
func LoadFile(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	var items []Document
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return NewMemoryStore(items), nil
}

// List returns every document in insertion order.
func (s *MemoryStore) List() []Document {
	return append([]Document(nil), s.items...)
}

// FindByID looks up a document by identifier.
func (s *MemoryStore) FindByID(id string) (Document, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Document{}, false
}
