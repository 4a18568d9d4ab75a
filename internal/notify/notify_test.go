package notify

import (
	"context"
	"testing"
	"time"

	"krysselista/internal/queue"
	"krysselista/internal/store"
)

func TestEmitAndConsume(t *testing.T) {
	mem := store.NewMemory()
	q := queue.NewInMemory(8)
	notifier := NewNotifier(q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = RunConsumer(ctx, q, mem)
	}()

	notifier.Emit(ctx, Notification{
		Type:           "mat",
		TargetRole:     "foresatt",
		KindergartenID: "bhg-1",
		Title:          "Nytt måltid",
		Message:        "Ola: lunsj",
		SenderName:     "Kari",
		SenderRole:     "ansatt",
	})

	deadline := time.Now().Add(time.Second)
	var docs []store.Doc
	for time.Now().Before(deadline) {
		docs, _ = mem.Query(ctx, Collection, store.Query{})
		if len(docs) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 notification written, got %d", len(docs))
	}
	if docs[0].String("targetRole") != "foresatt" || docs[0].String("title") != "Nytt måltid" {
		t.Errorf("written notification: %+v", docs[0])
	}
	if _, ok := docs[0]["timestamp"].(time.Time); !ok {
		t.Error("timestamp not set on emit")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
}

func TestListForRoleScoping(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	repo := NewRepository(mem)

	seed := []store.Doc{
		{"targetRole": "foresatt", "kindergardenId": "bhg-1", "title": "til foresatte", "timestamp": time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"targetRole": "ansatt", "kindergardenId": "bhg-1", "title": "til ansatte", "timestamp": time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)},
		{"targetRole": "foresatt", "kindergardenId": "bhg-2", "title": "annen barnehage", "timestamp": time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"targetRole": "foresatt", "kindergardenId": "bhg-1", "title": "nyest", "timestamp": time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, d := range seed {
		if _, err := mem.Create(ctx, Collection, d); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	list, err := repo.ListForRole(ctx, "bhg-1", "foresatt")
	if err != nil {
		t.Fatalf("ListForRole: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 notifications, got %d", len(list))
	}
	// Newest first.
	if list[0].Title != "nyest" || list[1].Title != "til foresatte" {
		t.Errorf("order: got [%s %s]", list[0].Title, list[1].Title)
	}
}
