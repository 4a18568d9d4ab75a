package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Doc is a schemaless document as stored in a collection. The "id" key is
// reserved and always present on documents returned by the store.
type Doc map[string]any

// ID returns the document id, or "" when unset.
func (d Doc) ID() string {
	s, _ := d["id"].(string)
	return s
}

// String returns the named field as a string, or "" when absent.
func (d Doc) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Bool returns the named field as a bool, or false when absent.
func (d Doc) Bool(field string) bool {
	b, _ := d[field].(bool)
	return b
}

// Filter is a single field comparison applied server-side where the backend
// supports it. Op is one of "==", "<", "<=", ">", ">=".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query describes a collection read.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// EventType classifies a change pushed to subscribers.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is a single document change delivered to a subscription callback.
type Event struct {
	Type       EventType
	Collection string
	ID         string
	Data       Doc
}

// UnsubscribeFunc tears down a live subscription. Callers own the
// subscription lifecycle: failing to invoke it leaks a listener that keeps
// firing into a defunct consumer.
type UnsubscribeFunc func()

// Store is the gateway to the document backend. Every write is an
// unconditional last-write-wins at document granularity; there are no
// transactions or optimistic concurrency checks.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)
	// Query returns documents matching q.
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	// Create inserts data under a fresh id and returns it.
	Create(ctx context.Context, collection string, data Doc) (string, error)
	// Set writes the full document under id, creating or overwriting it.
	Set(ctx context.Context, collection, id string, data Doc) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Doc) error
	// Subscribe registers fn for every change in the collection. fn is
	// invoked sequentially per subscription; errors inside fn are the
	// callback's problem, the subscription stays live.
	Subscribe(ctx context.Context, collection string, fn func(Event)) (UnsubscribeFunc, error)
	// Close releases backend connections.
	Close(ctx context.Context) error
}
