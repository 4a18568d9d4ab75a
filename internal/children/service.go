package children

import (
	"context"
	"errors"
	"fmt"
	"time"

	"krysselista/internal/auth"
	"krysselista/internal/domain"
	"krysselista/internal/notify"
)

// ErrAbsenceGated is returned when the in/out toggle is attempted on a
// child whose absence has already been registered today. The record is
// left untouched and no backend write happens.
var ErrAbsenceGated = errors.New("absence already registered today")

// Absence reasons accepted by RegisterAbsence.
var validReasons = map[string]bool{
	"syk":   true,
	"ferie": true,
	"annet": true,
}

// Service drives the per-child attendance lifecycle and the append-only
// day logs. Day-relevant events emit a notification to the opposite role;
// that emission is best-effort and cannot fail the primary write.
type Service struct {
	repo     *Repository
	notifier *notify.Notifier
}

// NewService creates a service.
func NewService(repo *Repository, notifier *notify.Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// MarkPresent sets the child checked-in. Rejected once the absence gate is
// set for the day.
func (s *Service) MarkPresent(ctx context.Context, actor auth.Session, childID string) (Child, error) {
	return s.toggle(ctx, childID, StatusIn)
}

// MarkAbsentToday sets the child checked-out (the "ut" action). Rejected
// once the absence gate is set; the gate flag itself is not touched.
func (s *Service) MarkAbsentToday(ctx context.Context, actor auth.Session, childID string) (Child, error) {
	return s.toggle(ctx, childID, StatusOut)
}

func (s *Service) toggle(ctx context.Context, childID, status string) (Child, error) {
	if childID == "" {
		return Child{}, fmt.Errorf("%w: child id required", domain.ErrInvalidArgument)
	}
	child, err := s.repo.Get(ctx, childID)
	if err != nil {
		return Child{}, err
	}
	if child.HasAbsenceToday {
		return child, ErrAbsenceGated
	}
	if err := s.repo.SetStatus(ctx, childID, status); err != nil {
		return Child{}, err
	}
	child.Status = status
	return child, nil
}

// RegisterAbsence records an absence for the given date, forces the child
// absent, and raises the day gate. Always allowed, including when the gate
// is already set: repeating a date overwrites the earlier record.
func (s *Service) RegisterAbsence(ctx context.Context, actor auth.Session, childID, reason, date, note string) (AttendanceRecord, error) {
	if childID == "" || reason == "" || date == "" {
		return AttendanceRecord{}, fmt.Errorf("%w: child id, reason and date required", domain.ErrInvalidArgument)
	}
	if !validReasons[reason] {
		return AttendanceRecord{}, fmt.Errorf("%w: unknown reason %q", domain.ErrInvalidArgument, reason)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return AttendanceRecord{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidArgument)
	}

	child, err := s.repo.Get(ctx, childID)
	if err != nil {
		return AttendanceRecord{}, err
	}

	rec := AttendanceRecord{
		ID:        childID + "_" + date,
		ChildID:   childID,
		Date:      date,
		Reason:    reason,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertAttendance(ctx, rec); err != nil {
		return AttendanceRecord{}, err
	}
	if err := s.repo.SetAbsent(ctx, childID); err != nil {
		return AttendanceRecord{}, err
	}

	s.notifier.Emit(ctx, notify.Notification{
		Type:           "fravaer",
		TargetRole:     domain.OppositeRole(actor.Role),
		KindergartenID: child.KindergartenID,
		Title:          "Fravær registrert",
		Subtitle:       child.Name,
		Message:        fmt.Sprintf("%s er meldt fraværende %s (%s).", child.Name, date, reason),
		SenderName:     actor.Name,
		SenderRole:     actor.Role,
	})
	return rec, nil
}

// LogSleep appends a nap entry and notifies guardians.
func (s *Service) LogSleep(ctx context.Context, actor auth.Session, childID, startTime, endTime string) (SleepLog, error) {
	if childID == "" || startTime == "" || endTime == "" {
		return SleepLog{}, fmt.Errorf("%w: child id, start and end required", domain.ErrInvalidArgument)
	}
	child, err := s.repo.Get(ctx, childID)
	if err != nil {
		return SleepLog{}, err
	}
	entry, err := s.repo.AddSleep(ctx, childID, startTime, endTime)
	if err != nil {
		return SleepLog{}, err
	}
	s.notifier.Emit(ctx, notify.Notification{
		Type:           "sovn",
		TargetRole:     domain.OppositeRole(actor.Role),
		KindergartenID: child.KindergartenID,
		Title:          "Ny søvnlogg",
		Subtitle:       child.Name,
		Message:        fmt.Sprintf("%s sov fra %s til %s.", child.Name, startTime, endTime),
		SenderName:     actor.Name,
		SenderRole:     actor.Role,
	})
	return entry, nil
}

// LogFood appends a meal entry and notifies guardians.
func (s *Service) LogFood(ctx context.Context, actor auth.Session, childID, meal, description, mealTime string) (FoodLog, error) {
	if childID == "" || meal == "" {
		return FoodLog{}, fmt.Errorf("%w: child id and meal required", domain.ErrInvalidArgument)
	}
	child, err := s.repo.Get(ctx, childID)
	if err != nil {
		return FoodLog{}, err
	}
	entry, err := s.repo.AddFood(ctx, childID, meal, description, mealTime)
	if err != nil {
		return FoodLog{}, err
	}
	s.notifier.Emit(ctx, notify.Notification{
		Type:           "mat",
		TargetRole:     domain.OppositeRole(actor.Role),
		KindergartenID: child.KindergartenID,
		Title:          "Nytt måltid",
		Subtitle:       child.Name,
		Message:        fmt.Sprintf("%s: %s %s", child.Name, meal, description),
		SenderName:     actor.Name,
		SenderRole:     actor.Role,
	})
	return entry, nil
}

// AddGalleryImage appends a photo reference and notifies guardians.
func (s *Service) AddGalleryImage(ctx context.Context, actor auth.Session, childID, imageURL string) (GalleryImage, error) {
	if childID == "" || imageURL == "" {
		return GalleryImage{}, fmt.Errorf("%w: child id and image url required", domain.ErrInvalidArgument)
	}
	child, err := s.repo.Get(ctx, childID)
	if err != nil {
		return GalleryImage{}, err
	}
	img, err := s.repo.AddImage(ctx, childID, imageURL)
	if err != nil {
		return GalleryImage{}, err
	}
	s.notifier.Emit(ctx, notify.Notification{
		Type:           "galleri",
		TargetRole:     domain.OppositeRole(actor.Role),
		KindergartenID: child.KindergartenID,
		Title:          "Nytt bilde",
		Subtitle:       child.Name,
		Message:        fmt.Sprintf("Et nytt bilde av %s er lagt til i galleriet.", child.Name),
		SenderName:     actor.Name,
		SenderRole:     actor.Role,
	})
	return img, nil
}
