package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"krysselista/internal/auth"
	"krysselista/internal/domain"
	"krysselista/internal/notify"
	"krysselista/internal/queue"
	"krysselista/internal/store"
)

func newCalendarFixture() (*Service, *store.Memory, *queue.InMemory) {
	mem := store.NewMemory()
	q := queue.NewInMemory(8)
	return NewService(mem, notify.NewNotifier(q)), mem, q
}

func staffSession() auth.Session {
	return auth.Session{UserID: "s1", Name: "Kari", Role: "ansatt", KindergartenID: "bhg-1"}
}

func TestAddEventAndList(t *testing.T) {
	svc, _, q := newCalendarFixture()
	ctx := context.Background()

	evt, err := svc.AddEvent(ctx, staffSession(), "2025-05", Event{
		Date:  "2025-05-17",
		Title: "17. mai-feiring",
		Start: "10:00",
		End:   "12:00",
	})
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if evt.ID == "" || evt.MonthID != "2025-05" {
		t.Errorf("event: %+v", evt)
	}

	// Creating an event notifies guardians of the kindergarten.
	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	jobs, _ := q.Consume(ctx2)
	select {
	case job := <-jobs:
		if job.Data["type"] != "kalender" || job.Data["targetRole"] != "foresatt" {
			t.Errorf("calendar notification: %+v", job.Data)
		}
		if job.Data["kindergardenId"] != "bhg-1" {
			t.Errorf("notification scope: %v", job.Data["kindergardenId"])
		}
	case <-ctx2.Done():
		t.Fatal("no notification queued")
	}

	// Another month stays empty.
	other, err := svc.MonthEvents(ctx, "2025-06")
	if err != nil {
		t.Fatalf("MonthEvents: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unexpected events in other month: %d", len(other))
	}

	events, err := svc.MonthEvents(ctx, "2025-05")
	if err != nil {
		t.Fatalf("MonthEvents: %v", err)
	}
	if len(events) != 1 || events[0].Title != "17. mai-feiring" {
		t.Errorf("month events: %+v", events)
	}
}

func TestAddEventValidation(t *testing.T) {
	svc, _, _ := newCalendarFixture()
	ctx := context.Background()

	cases := []struct {
		name    string
		monthID string
		evt     Event
	}{
		{"missing month", "", Event{Date: "2025-05-17", Title: "x"}},
		{"bad month format", "mai-2025", Event{Date: "2025-05-17", Title: "x"}},
		{"missing title", "2025-05", Event{Date: "2025-05-17"}},
		{"missing date", "2025-05", Event{Title: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddEvent(ctx, staffSession(), tc.monthID, tc.evt); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, got %v", err)
			}
		})
	}
}
