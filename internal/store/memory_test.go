package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSetUpdate(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if _, err := mem.Get(ctx, "c", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if err := mem.Set(ctx, "c", "one", Doc{"name": "a"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	doc, err := mem.Get(ctx, "c", "one")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID() != "one" || doc.String("name") != "a" {
		t.Errorf("stored doc: %+v", doc)
	}

	if err := mem.Update(ctx, "c", "one", Doc{"name": "b", "extra": true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, _ = mem.Get(ctx, "c", "one")
	if doc.String("name") != "b" || !doc.Bool("extra") {
		t.Errorf("merged doc: %+v", doc)
	}

	if err := mem.Update(ctx, "c", "nope", Doc{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: want ErrNotFound, got %v", err)
	}

	// Set is a full overwrite, not a merge.
	if err := mem.Set(ctx, "c", "one", Doc{"name": "c"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	doc, _ = mem.Get(ctx, "c", "one")
	if _, ok := doc["extra"]; ok {
		t.Error("Set kept a field from the previous version")
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	_ = mem.Set(ctx, "c", "one", Doc{"name": "a"})

	doc, _ := mem.Get(ctx, "c", "one")
	doc["name"] = "mutated"

	again, _ := mem.Get(ctx, "c", "one")
	if again.String("name") != "a" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestMemoryQueryFilterOrderLimit(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"c", "a", "b", "d"} {
		kg := "kg1"
		if name == "d" {
			kg = "kg2"
		}
		_ = mem.Set(ctx, "children", name, Doc{
			"name":           name,
			"kindergardenId": kg,
			"ts":             base.Add(time.Duration(i) * time.Hour),
		})
	}

	docs, err := mem.Query(ctx, "children", Query{
		Filters: []Filter{{Field: "kindergardenId", Op: "==", Value: "kg1"}},
		OrderBy: "name",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("filter: want 3 docs, got %d", len(docs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if docs[i].String("name") != want {
			t.Errorf("order[%d]: want %s, got %s", i, want, docs[i].String("name"))
		}
	}

	docs, _ = mem.Query(ctx, "children", Query{OrderBy: "ts", Desc: true, Limit: 2})
	if len(docs) != 2 {
		t.Fatalf("limit: want 2 docs, got %d", len(docs))
	}
	if docs[0].String("name") != "d" {
		t.Errorf("desc order: want d first, got %s", docs[0].String("name"))
	}
}

func TestMemorySubscribe(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	var events []Event
	unsub, err := mem.Subscribe(ctx, "messages", func(evt Event) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	id, _ := mem.Create(ctx, "messages", Doc{"text": "hei"})
	if len(events) != 1 {
		t.Fatalf("want 1 event after create, got %d", len(events))
	}
	if events[0].Type != EventCreated || events[0].ID != id {
		t.Errorf("create event: %+v", events[0])
	}

	_ = mem.Update(ctx, "messages", id, Doc{"text": "hallo"})
	if len(events) != 2 || events[1].Type != EventUpdated {
		t.Fatalf("want update event, got %+v", events)
	}
	if events[1].Data.String("text") != "hallo" {
		t.Errorf("update event carries stale data: %+v", events[1].Data)
	}

	// Writes to other collections stay invisible.
	_, _ = mem.Create(ctx, "notifications", Doc{"title": "x"})
	if len(events) != 2 {
		t.Error("subscription leaked across collections")
	}

	// After unsubscribe the listener must never fire again.
	unsub()
	_, _ = mem.Create(ctx, "messages", Doc{"text": "etterpå"})
	if len(events) != 2 {
		t.Error("listener fired after unsubscribe")
	}
}
