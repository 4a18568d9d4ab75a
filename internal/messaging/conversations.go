package messaging

import (
	"sort"
	"time"
)

// Message is one direct message between two users. ReadBy is written empty
// on send and carried through untouched; nothing reads it back.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	ReadBy     []string  `json:"readBy"`
}

// Conversation summarizes one user pair's thread for the conversation list.
type Conversation struct {
	ID              string    `json:"id"`
	PartnerID       string    `json:"otherPersonId"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	Messages        []Message `json:"messages"`
}

// ConversationKey is the canonical identifier for a user pair's thread: the
// two participant ids sorted lexicographically and joined. Both
// participants derive the same key regardless of who sent first.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// DeriveConversations reduces the whole message collection down to userID's
// conversation list, most recent first. The reduction is pure and
// idempotent; messages without a timestamp sort as epoch. The scan is
// O(total messages) because the message collection is not scoped per
// conversation.
func DeriveConversations(msgs []Message, userID string) []Conversation {
	byKey := make(map[string]*Conversation)

	for _, m := range msgs {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		partner := m.ReceiverID
		if m.ReceiverID == userID {
			partner = m.SenderID
		}
		if partner == "" {
			continue
		}

		key := ConversationKey(userID, partner)
		conv, ok := byKey[key]
		if !ok {
			conv = &Conversation{ID: key, PartnerID: partner}
			byKey[key] = conv
		}
		conv.Messages = append(conv.Messages, m)

		// First retained message seeds the summary; later ones replace it
		// only when strictly newer. Ties are implementation-defined.
		if len(conv.Messages) == 1 || m.Timestamp.After(conv.LastMessageTime) {
			conv.LastMessage = m.Text
			conv.LastMessageTime = m.Timestamp
		}
	}

	out := make([]Conversation, 0, len(byKey))
	for _, conv := range byKey {
		out = append(out, *conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}

// Thread returns the messages exchanged between two users, oldest first —
// the inverse ordering of the conversation list, since a thread reads
// top to bottom.
func Thread(msgs []Message, userA, userB string) []Message {
	var out []Message
	for _, m := range msgs {
		fromAToB := m.SenderID == userA && m.ReceiverID == userB
		fromBToA := m.SenderID == userB && m.ReceiverID == userA
		if fromAToB || fromBToA {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
