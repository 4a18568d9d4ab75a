package calendar

import (
	"context"
	"fmt"
	"time"

	"krysselista/internal/auth"
	"krysselista/internal/domain"
	"krysselista/internal/notify"
	"krysselista/internal/store"
)

const collection = "calendar"

// Event is one calendar entry within a month. Events are immutable once
// created; there is no update path.
type Event struct {
	ID          string `json:"id"`
	MonthID     string `json:"monthId"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
}

// Service reads and creates calendar events. Creating an event notifies
// guardians in the kindergarten; the notification is best-effort.
type Service struct {
	store    store.Store
	notifier *notify.Notifier
}

// NewService creates a calendar service.
func NewService(s store.Store, n *notify.Notifier) *Service {
	return &Service{store: s, notifier: n}
}

// MonthEvents returns the events of one month (monthId "YYYY-MM"), ordered
// by date.
func (s *Service) MonthEvents(ctx context.Context, monthID string) ([]Event, error) {
	if monthID == "" {
		return nil, fmt.Errorf("%w: month id required", domain.ErrInvalidArgument)
	}
	docs, err := s.store.Query(ctx, collection, store.Query{
		Filters: []store.Filter{{Field: "monthId", Op: "==", Value: monthID}},
		OrderBy: "date",
	})
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	out := make([]Event, 0, len(docs))
	for _, d := range docs {
		out = append(out, Event{
			ID:          d.ID(),
			MonthID:     d.String("monthId"),
			Date:        d.String("date"),
			Title:       d.String("title"),
			Description: d.String("description"),
			Start:       d.String("start"),
			End:         d.String("end"),
		})
	}
	return out, nil
}

// AddEvent writes a new event and emits a guardian-facing notification.
func (s *Service) AddEvent(ctx context.Context, actor auth.Session, monthID string, evt Event) (Event, error) {
	if monthID == "" || evt.Date == "" || evt.Title == "" {
		return Event{}, fmt.Errorf("%w: month id, date and title required", domain.ErrInvalidArgument)
	}
	if _, err := time.Parse("2006-01", monthID); err != nil {
		return Event{}, fmt.Errorf("%w: month id must be YYYY-MM", domain.ErrInvalidArgument)
	}
	evt.MonthID = monthID

	id, err := s.store.Create(ctx, collection, store.Doc{
		"monthId":     evt.MonthID,
		"date":        evt.Date,
		"title":       evt.Title,
		"description": evt.Description,
		"start":       evt.Start,
		"end":         evt.End,
	})
	if err != nil {
		return Event{}, err
	}
	evt.ID = id

	message := evt.Description
	if message == "" {
		message = "Ny hendelse er lagt til i kalenderen."
	}
	s.notifier.Emit(ctx, notify.Notification{
		Type:           "kalender",
		TargetRole:     domain.RoleGuardian,
		KindergartenID: actor.KindergartenID,
		Title:          evt.Title,
		Subtitle:       evt.Date,
		Message:        message,
		SenderName:     actor.Name,
		SenderRole:     actor.Role,
	})
	return evt, nil
}
