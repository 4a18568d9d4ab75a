package messaging

import (
	"reflect"
	"testing"
	"time"
)

func ts(sec int) time.Time {
	return time.Date(2025, 3, 10, 9, 0, sec, 0, time.UTC)
}

func TestConversationKeySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"anna", "berit"},
		{"berit", "anna"},
		{"zz", "aa"},
		{"u1", "u1"},
	}
	for _, p := range pairs {
		if got, want := ConversationKey(p[0], p[1]), ConversationKey(p[1], p[0]); got != want {
			t.Errorf("key(%q,%q)=%q but key(%q,%q)=%q", p[0], p[1], got, p[1], p[0], want)
		}
	}
	if got := ConversationKey("b", "a"); got != "a_b" {
		t.Errorf("key ordering: want a_b, got %s", got)
	}
}

func TestDeriveConversationsBothPerspectives(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", Text: "hi", Timestamp: ts(1)},
		{ID: "2", SenderID: "b", ReceiverID: "a", Text: "hello", Timestamp: ts(2)},
	}

	fromA := DeriveConversations(msgs, "a")
	fromB := DeriveConversations(msgs, "b")

	if len(fromA) != 1 || len(fromB) != 1 {
		t.Fatalf("want one conversation from each side, got %d and %d", len(fromA), len(fromB))
	}
	if fromA[0].ID != fromB[0].ID {
		t.Errorf("canonical key differs between participants: %s vs %s", fromA[0].ID, fromB[0].ID)
	}
	if fromA[0].PartnerID != "b" {
		t.Errorf("partner from a's side: want b, got %s", fromA[0].PartnerID)
	}
	if fromB[0].PartnerID != "a" {
		t.Errorf("partner from b's side: want a, got %s", fromB[0].PartnerID)
	}
	if fromA[0].LastMessage != "hello" {
		t.Errorf("last message: want hello, got %q", fromA[0].LastMessage)
	}
	if !fromA[0].LastMessageTime.Equal(ts(2)) {
		t.Errorf("last message time: want %v, got %v", ts(2), fromA[0].LastMessageTime)
	}
	if len(fromA[0].Messages) != 2 {
		t.Errorf("member messages: want 2, got %d", len(fromA[0].Messages))
	}
}

func TestDeriveConversationsIdempotent(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", Text: "x", Timestamp: ts(5)},
		{ID: "2", SenderID: "c", ReceiverID: "a", Text: "y", Timestamp: ts(3)},
		{ID: "3", SenderID: "a", ReceiverID: "b", Text: "z", Timestamp: ts(8)},
		{ID: "4", SenderID: "d", ReceiverID: "e", Text: "unrelated", Timestamp: ts(9)},
	}
	first := DeriveConversations(msgs, "a")
	second := DeriveConversations(msgs, "a")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs over the same input differ:\n%v\n%v", first, second)
	}
}

func TestDeriveConversationsOrderAndFilter(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", Text: "old", Timestamp: ts(1)},
		{ID: "2", SenderID: "c", ReceiverID: "a", Text: "new", Timestamp: ts(10)},
		{ID: "3", SenderID: "d", ReceiverID: "e", Text: "not mine", Timestamp: ts(20)},
	}
	convs := DeriveConversations(msgs, "a")
	if len(convs) != 2 {
		t.Fatalf("want 2 conversations, got %d", len(convs))
	}
	// Most recent conversation first.
	if convs[0].PartnerID != "c" || convs[1].PartnerID != "b" {
		t.Errorf("order: want [c b], got [%s %s]", convs[0].PartnerID, convs[1].PartnerID)
	}
}

func TestDeriveConversationsMissingTimestamp(t *testing.T) {
	// A message without a timestamp sorts as epoch and must not displace a
	// dated one as the last message.
	msgs := []Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", Text: "dated", Timestamp: ts(1)},
		{ID: "2", SenderID: "b", ReceiverID: "a", Text: "undated"},
	}
	convs := DeriveConversations(msgs, "a")
	if len(convs) != 1 {
		t.Fatalf("want 1 conversation, got %d", len(convs))
	}
	if convs[0].LastMessage != "dated" {
		t.Errorf("last message: want dated, got %q", convs[0].LastMessage)
	}
}

func TestThreadChronologicalAndScoped(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", Text: "first", Timestamp: ts(1)},
		{ID: "2", SenderID: "c", ReceiverID: "b", Text: "intruder", Timestamp: ts(2)},
		{ID: "3", SenderID: "b", ReceiverID: "a", Text: "second", Timestamp: ts(3)},
		{ID: "4", SenderID: "a", ReceiverID: "b", Text: "third", Timestamp: ts(4)},
	}

	thread := Thread(msgs, "a", "b")
	if len(thread) != 3 {
		t.Fatalf("want 3 messages in thread, got %d", len(thread))
	}
	for _, m := range thread {
		if m.SenderID == "c" || m.ReceiverID == "c" {
			t.Errorf("thread leaked an unrelated message: %+v", m)
		}
	}
	// Oldest first, monotonically non-decreasing.
	for i := 1; i < len(thread); i++ {
		if thread[i].Timestamp.Before(thread[i-1].Timestamp) {
			t.Errorf("thread not chronological at %d: %v before %v", i, thread[i].Timestamp, thread[i-1].Timestamp)
		}
	}
	if thread[0].Text != "first" || thread[2].Text != "third" {
		t.Errorf("thread order wrong: %q ... %q", thread[0].Text, thread[2].Text)
	}
}

func TestThreadEmptyForStrangers(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", Text: "x", Timestamp: ts(1)},
	}
	if got := Thread(msgs, "c", "d"); len(got) != 0 {
		t.Errorf("want empty thread, got %d messages", len(got))
	}
}
