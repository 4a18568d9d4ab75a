package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"krysselista/internal/queue"
	"krysselista/internal/store"
)

// Collection is the notification fan-out collection.
const Collection = "notifications"

// Notification is a write-once fan-out record targeted at one role within
// one kindergarten. There is no read/unread tracking.
type Notification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	TargetRole     string    `json:"targetRole"`
	KindergartenID string    `json:"kindergardenId"`
	Title          string    `json:"title"`
	Subtitle       string    `json:"subtitle,omitempty"`
	Message        string    `json:"message"`
	SenderName     string    `json:"senderName"`
	SenderRole     string    `json:"senderRole"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notifier queues notification writes. Emission is best-effort by contract:
// a failed publish is logged and never propagated to the caller, so the
// primary domain write it accompanies cannot be rolled back by it.
type Notifier struct {
	queue queue.Queue
}

// NewNotifier creates a notifier publishing to q.
func NewNotifier(q queue.Queue) *Notifier {
	return &Notifier{queue: q}
}

// Emit enqueues n for fan-out. Never returns an error.
func (n *Notifier) Emit(ctx context.Context, notif Notification) {
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now().UTC()
	}
	job := queue.Job{
		Collection: Collection,
		Data: map[string]any{
			"type":           notif.Type,
			"targetRole":     notif.TargetRole,
			"kindergardenId": notif.KindergartenID,
			"title":          notif.Title,
			"subtitle":       notif.Subtitle,
			"message":        notif.Message,
			"senderName":     notif.SenderName,
			"senderRole":     notif.SenderRole,
			"timestamp":      notif.Timestamp,
		},
	}
	if err := n.queue.Publish(ctx, job); err != nil {
		log.Printf("notify: publish failed (dropped): %v", err)
	}
}

// RunConsumer drains the queue into the store until ctx is cancelled.
// Write failures are logged and the job is dropped.
func RunConsumer(ctx context.Context, q queue.Queue, s store.Store) error {
	jobs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for job := range jobs {
		if job.Collection == "" {
			job.Collection = Collection
		}
		// The Redis backend round-trips jobs through JSON, which turns the
		// timestamp into a string.
		if s, ok := job.Data["timestamp"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				job.Data["timestamp"] = ts
			}
		}
		if _, err := s.Create(ctx, job.Collection, store.Doc(job.Data)); err != nil {
			log.Printf("notify: store write failed: %v", err)
		}
	}
	return nil
}

// Repository reads notifications back for display.
type Repository struct {
	store store.Store
}

// NewRepository creates a repo.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// ListForRole returns notifications targeted at role within a kindergarten,
// newest first.
func (r *Repository) ListForRole(ctx context.Context, kindergartenID, role string) ([]Notification, error) {
	docs, err := r.store.Query(ctx, Collection, store.Query{
		Filters: []store.Filter{
			{Field: "kindergardenId", Op: "==", Value: kindergartenID},
			{Field: "targetRole", Op: "==", Value: role},
		},
		OrderBy: "timestamp",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	out := make([]Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, FromDoc(d))
	}
	return out, nil
}

// FromDoc maps a stored document onto a Notification.
func FromDoc(d store.Doc) Notification {
	n := Notification{
		ID:             d.ID(),
		Type:           d.String("type"),
		TargetRole:     d.String("targetRole"),
		KindergartenID: d.String("kindergardenId"),
		Title:          d.String("title"),
		Subtitle:       d.String("subtitle"),
		Message:        d.String("message"),
		SenderName:     d.String("senderName"),
		SenderRole:     d.String("senderRole"),
	}
	if ts, ok := d["timestamp"].(time.Time); ok {
		n.Timestamp = ts
	}
	return n
}
