package memory

import (
	"context"
	"sync"

	"github.com/navhub/navhub/internal/directory"
)

// CatalogStore keeps published entries in process memory.
type CatalogStore struct {
	mu      sync.RWMutex
	entries []directory.CatalogEntry
}

// NewCatalogStore constructs a CatalogStore.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{}
}

// Insert appends a catalog entry.
func (s *CatalogStore) Insert(_ context.Context, entry directory.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns all catalog entries, newest first.
func (s *CatalogStore) List(_ context.Context) ([]directory.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]directory.CatalogEntry, len(s.entries))
	for i, entry := range s.entries {
		out[len(s.entries)-1-i] = entry
	}
	return out, nil
}

// CategoryStore serves a fixed taxonomy seeded at construction.
type CategoryStore struct {
	categories []directory.Category
}

// NewCategoryStore constructs a CategoryStore from category names.
func NewCategoryStore(names []string) *CategoryStore {
	categories := make([]directory.Category, 0, len(names))
	for _, name := range names {
		categories = append(categories, directory.Category{Name: name})
	}
	return &CategoryStore{categories: categories}
}

// List returns the seeded taxonomy.
func (s *CategoryStore) List(_ context.Context) ([]directory.Category, error) {
	out := make([]directory.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}
