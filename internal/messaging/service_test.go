package messaging

import (
	"context"
	"errors"
	"testing"

	"krysselista/internal/domain"
	"krysselista/internal/store"
)

func TestSendAndDeriveEndToEnd(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "a", "b", "hei"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, "b", "a", "hallo"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, "c", "b", "uvedkommende"); err != nil {
		t.Fatalf("send: %v", err)
	}

	convs, err := svc.ConversationsFor(ctx, "a")
	if err != nil {
		t.Fatalf("ConversationsFor: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("want 1 conversation for a, got %d", len(convs))
	}
	if convs[0].PartnerID != "b" || convs[0].LastMessage != "hallo" {
		t.Errorf("summary: %+v", convs[0])
	}

	thread, err := svc.ThreadFor(ctx, "a", "b")
	if err != nil {
		t.Fatalf("ThreadFor: %v", err)
	}
	if len(thread) != 2 {
		t.Fatalf("want 2 messages in thread, got %d", len(thread))
	}
	if thread[0].Text != "hei" || thread[1].Text != "hallo" {
		t.Errorf("thread order: [%s %s]", thread[0].Text, thread[1].Text)
	}
}

func TestSendValidation(t *testing.T) {
	svc := NewService(store.NewMemory())
	ctx := context.Background()

	cases := []struct {
		name                   string
		sender, receiver, text string
	}{
		{"missing sender", "", "b", "x"},
		{"missing receiver", "a", "", "x"},
		{"empty text", "a", "b", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Send(ctx, tc.sender, tc.receiver, tc.text); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestSendTrimsAndInitializesReadBy(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "a", "b", "  hei  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text != "hei" {
		t.Errorf("text not trimmed: %q", msg.Text)
	}
	doc, err := mem.Get(ctx, Collection, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// readBy is written empty on send and never consulted afterwards.
	if rb, ok := doc["readBy"].([]string); !ok || len(rb) != 0 {
		t.Errorf("readBy: %v", doc["readBy"])
	}
}

func TestSendToManySkipsEmptyIDs(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem)
	ctx := context.Background()

	msgs, err := svc.SendToMany(ctx, "a", []string{"b", "", "c"}, "felles beskjed")
	if err != nil {
		t.Fatalf("SendToMany: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("want 2 messages sent, got %d", len(msgs))
	}

	all, err := svc.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("want 2 stored messages, got %d", len(all))
	}
}
