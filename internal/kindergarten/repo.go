package kindergarten

import (
	"context"
	"fmt"

	"krysselista/internal/store"
)

// Collection name matches the production database (historical spelling).
const collection = "kindergarden"

// Kindergarten is one registered kindergarten.
type Kindergarten struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Repository lists kindergartens.
type Repository struct {
	store store.Store
}

// NewRepository creates a repo.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// List returns all kindergartens, sorted by name.
func (r *Repository) List(ctx context.Context) ([]Kindergarten, error) {
	docs, err := r.store.Query(ctx, collection, store.Query{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("query kindergartens: %w", err)
	}
	out := make([]Kindergarten, 0, len(docs))
	for _, d := range docs {
		out = append(out, Kindergarten{ID: d.ID(), Name: d.String("name")})
	}
	return out, nil
}
