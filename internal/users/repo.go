package users

import (
	"context"
	"fmt"

	"krysselista/internal/store"
)

const collection = "users"

// User is a registered profile. Profiles are created out of band at
// enrollment; this service only reads them.
type User struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Role           string   `json:"role"`
	Children       []string `json:"children"`
	KindergartenID string   `json:"kindergardenId"`
	PasswordHash   string   `json:"-"`
}

// Repository reads user profiles from the document store.
type Repository struct {
	store store.Store
}

// NewRepository creates a repo.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns the profile with the given id, or store.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	doc, err := r.store.Get(ctx, collection, id)
	if err != nil {
		return User{}, err
	}
	return fromDoc(doc), nil
}

// GetByEmail returns the profile registered under email, or store.ErrNotFound.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	docs, err := r.store.Query(ctx, collection, store.Query{
		Filters: []store.Filter{{Field: "email", Op: "==", Value: email}},
		Limit:   1,
	})
	if err != nil {
		return User{}, fmt.Errorf("query users: %w", err)
	}
	if len(docs) == 0 {
		return User{}, store.ErrNotFound
	}
	return fromDoc(docs[0]), nil
}

// ListByRole returns every profile in a kindergarten holding the given role.
func (r *Repository) ListByRole(ctx context.Context, kindergartenID, role string) ([]User, error) {
	docs, err := r.store.Query(ctx, collection, store.Query{
		Filters: []store.Filter{
			{Field: "kindergardenId", Op: "==", Value: kindergartenID},
			{Field: "role", Op: "==", Value: role},
		},
		OrderBy: "name",
	})
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	out := make([]User, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func fromDoc(d store.Doc) User {
	return User{
		ID:             d.ID(),
		Name:           d.String("name"),
		Email:          d.String("email"),
		Role:           d.String("role"),
		Children:       stringSlice(d["children"]),
		KindergartenID: d.String("kindergardenId"),
		PasswordHash:   d.String("passwordHash"),
	}
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
