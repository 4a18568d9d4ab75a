package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"krysselista/internal/domain"
	"krysselista/internal/store"
)

// Collection is the flat, unscoped message collection. Every reader filters
// client-side; see DeriveConversations.
const Collection = "messages"

// Service sends and reads direct messages.
type Service struct {
	store store.Store
}

// NewService creates a messaging service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Send appends one message. ReadBy starts empty.
func (s *Service) Send(ctx context.Context, senderID, receiverID, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if senderID == "" || receiverID == "" || text == "" {
		return Message{}, fmt.Errorf("%w: sender, receiver and text required", domain.ErrInvalidArgument)
	}
	msg := Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Timestamp:  time.Now().UTC(),
		ReadBy:     []string{},
	}
	id, err := s.store.Create(ctx, Collection, store.Doc{
		"senderId":   msg.SenderID,
		"receiverId": msg.ReceiverID,
		"text":       msg.Text,
		"timestamp":  msg.Timestamp,
		"readBy":     msg.ReadBy,
	})
	if err != nil {
		return Message{}, err
	}
	msg.ID = id
	return msg, nil
}

// SendToMany sends the same text to several receivers. Empty receiver ids
// are skipped; the first write failure aborts the rest.
func (s *Service) SendToMany(ctx context.Context, senderID string, receiverIDs []string, text string) ([]Message, error) {
	if senderID == "" || len(receiverIDs) == 0 || strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: sender, receivers and text required", domain.ErrInvalidArgument)
	}
	var out []Message
	for _, rid := range receiverIDs {
		if rid == "" {
			continue
		}
		msg, err := s.Send(ctx, senderID, rid, text)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// All returns every message in the system. Conversation and thread views
// are derived from this unscoped read; the cost grows with the total
// message count, which is a known limit of the data model.
func (s *Service) All(ctx context.Context) ([]Message, error) {
	docs, err := s.store.Query(ctx, Collection, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	out := make([]Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, FromDoc(d))
	}
	return out, nil
}

// ConversationsFor derives userID's conversation list from the full
// collection, most recent first.
func (s *Service) ConversationsFor(ctx context.Context, userID string) ([]Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrInvalidArgument)
	}
	msgs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return DeriveConversations(msgs, userID), nil
}

// ThreadFor returns the chronological thread between two users.
func (s *Service) ThreadFor(ctx context.Context, userA, userB string) ([]Message, error) {
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("%w: both participants required", domain.ErrInvalidArgument)
	}
	msgs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return Thread(msgs, userA, userB), nil
}

// FromDoc maps a stored document onto a Message.
func FromDoc(d store.Doc) Message {
	m := Message{
		ID:         d.ID(),
		SenderID:   d.String("senderId"),
		ReceiverID: d.String("receiverId"),
		Text:       d.String("text"),
	}
	if ts, ok := d["timestamp"].(time.Time); ok {
		m.Timestamp = ts
	}
	if rb, ok := d["readBy"].([]string); ok {
		m.ReadBy = rb
	} else if rb, ok := d["readBy"].([]any); ok {
		for _, e := range rb {
			if s, ok := e.(string); ok {
				m.ReadBy = append(m.ReadBy, s)
			}
		}
	}
	return m
}
