package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a map-backed Store for dev and tests. Subscriptions fire
// synchronously from the writing goroutine.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]Doc

	subMu   sync.Mutex
	nextSub int
	subs    map[string]map[int]func(Event)
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]Doc),
		subs: make(map[string]map[int]func(Event)),
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	m.mu.RLock()
	var res []Doc
	for _, doc := range m.data[collection] {
		if matches(doc, q.Filters) {
			res = append(res, cloneDoc(doc))
		}
	}
	m.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(res, func(i, j int) bool {
			less := lessValue(res[i][q.OrderBy], res[j][q.OrderBy])
			if q.Desc {
				return !less && !equalValue(res[i][q.OrderBy], res[j][q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

func (m *Memory) Create(ctx context.Context, collection string, data Doc) (string, error) {
	id := uuid.NewString()
	if err := m.put(collection, id, data, EventCreated); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data Doc) error {
	m.mu.RLock()
	_, existed := m.data[collection][id]
	m.mu.RUnlock()
	typ := EventCreated
	if existed {
		typ = EventUpdated
	}
	return m.put(collection, id, data, typ)
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Doc) error {
	m.mu.Lock()
	doc, ok := m.data[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged := cloneDoc(doc)
	for k, v := range fields {
		merged[k] = v
	}
	m.data[collection][id] = merged
	snapshot := cloneDoc(merged)
	m.mu.Unlock()

	m.emit(Event{Type: EventUpdated, Collection: collection, ID: id, Data: snapshot})
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, fn func(Event)) (UnsubscribeFunc, error) {
	m.subMu.Lock()
	m.nextSub++
	key := m.nextSub
	if m.subs[collection] == nil {
		m.subs[collection] = make(map[int]func(Event))
	}
	m.subs[collection][key] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs[collection], key)
		m.subMu.Unlock()
	}, nil
}

func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) put(collection, id string, data Doc, typ EventType) error {
	doc := cloneDoc(data)
	doc["id"] = id
	m.mu.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]Doc)
	}
	m.data[collection][id] = doc
	snapshot := cloneDoc(doc)
	m.mu.Unlock()

	m.emit(Event{Type: typ, Collection: collection, ID: id, Data: snapshot})
	return nil
}

func (m *Memory) emit(evt Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs[evt.Collection]))
	for _, fn := range m.subs[evt.Collection] {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

func cloneDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func matches(doc Doc, filters []Filter) bool {
	for _, f := range filters {
		got := doc[f.Field]
		switch f.Op {
		case "", "==":
			if !equalValue(got, f.Value) {
				return false
			}
		case "<":
			if !lessValue(got, f.Value) {
				return false
			}
		case "<=":
			if !lessValue(got, f.Value) && !equalValue(got, f.Value) {
				return false
			}
		case ">":
			if lessValue(got, f.Value) || equalValue(got, f.Value) {
				return false
			}
		case ">=":
			if lessValue(got, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	return a == b
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case int:
		bv, ok := b.(int)
		return ok && av < bv
	case int64:
		bv, ok := b.(int64)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Before(bv)
	case nil:
		return b != nil
	}
	return false
}
