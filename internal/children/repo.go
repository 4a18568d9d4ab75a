package children

import (
	"context"
	"fmt"
	"time"

	"krysselista/internal/store"
)

// Collection names for the child record and its per-child logs. Logs live in
// flat collections keyed by childId rather than nested subcollections.
const (
	Collection           = "children"
	attendanceCollection = "attendance"
	sleepCollection      = "sleep_logs"
	foodCollection       = "food_logs"
	galleryCollection    = "gallery"
)

// Attendance statuses as stored on the child document.
const (
	StatusIn     = "inn"
	StatusOut    = "ut"
	StatusAbsent = "fravaer"
)

// Health holds allergy and medication lists.
type Health struct {
	Allergies []string `json:"allergies,omitempty"`
	Medicine  []string `json:"medicine,omitempty"`
}

// Child is the per-child record.
type Child struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	KindergartenID  string   `json:"kindergardenId"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Status          string   `json:"status"`
	HasAbsenceToday bool     `json:"hasAbsenceToday"`
	ImportantInfo   string   `json:"importantInfo,omitempty"`
	Health          Health   `json:"health"`
	Guardians       []string `json:"guardians,omitempty"`
	Gallery         []string `json:"gallery,omitempty"`
}

// AttendanceRecord is one absence registration, keyed by (child, date).
type AttendanceRecord struct {
	ID        string    `json:"id"`
	ChildID   string    `json:"childId"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SleepLog is one recorded nap.
type SleepLog struct {
	ID        string    `json:"id"`
	ChildID   string    `json:"childId"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
}

// FoodLog is one recorded meal.
type FoodLog struct {
	ID          string    `json:"id"`
	ChildID     string    `json:"childId"`
	Meal        string    `json:"meal"`
	Description string    `json:"description,omitempty"`
	Time        string    `json:"time"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GalleryImage is one uploaded photo reference.
type GalleryImage struct {
	ID         string    `json:"id"`
	ChildID    string    `json:"childId"`
	ImageURL   string    `json:"imageUrl"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Repository persists child records and their logs in the document store.
type Repository struct {
	store store.Store
}

// NewRepository creates a repo.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns a child record, or store.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (Child, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return Child{}, err
	}
	return childFromDoc(doc), nil
}

// ListByKindergarten returns every child in a kindergarten, sorted by name.
func (r *Repository) ListByKindergarten(ctx context.Context, kindergartenID string) ([]Child, error) {
	docs, err := r.store.Query(ctx, Collection, store.Query{
		Filters: []store.Filter{{Field: "kindergardenId", Op: "==", Value: kindergartenID}},
		OrderBy: "name",
	})
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	out := make([]Child, 0, len(docs))
	for _, d := range docs {
		out = append(out, childFromDoc(d))
	}
	return out, nil
}

// SetStatus writes the attendance status only.
func (r *Repository) SetStatus(ctx context.Context, id, status string) error {
	return r.store.Update(ctx, Collection, id, store.Doc{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	})
}

// SetAbsent forces absent status along with the day gate flag.
func (r *Repository) SetAbsent(ctx context.Context, id string) error {
	return r.store.Update(ctx, Collection, id, store.Doc{
		"status":          StatusAbsent,
		"hasAbsenceToday": true,
		"updatedAt":       time.Now().UTC(),
	})
}

// UpsertAttendance writes the absence record for (child, date). The id is
// derived from the pair so a repeat registration for the same date
// overwrites instead of duplicating.
func (r *Repository) UpsertAttendance(ctx context.Context, rec AttendanceRecord) error {
	id := rec.ChildID + "_" + rec.Date
	return r.store.Set(ctx, attendanceCollection, id, store.Doc{
		"childId":   rec.ChildID,
		"date":      rec.Date,
		"reason":    rec.Reason,
		"note":      rec.Note,
		"createdAt": rec.CreatedAt,
	})
}

// ListAttendance returns a child's absence history, newest date first.
func (r *Repository) ListAttendance(ctx context.Context, childID string) ([]AttendanceRecord, error) {
	docs, err := r.store.Query(ctx, attendanceCollection, store.Query{
		Filters: []store.Filter{{Field: "childId", Op: "==", Value: childID}},
		OrderBy: "date",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	out := make([]AttendanceRecord, 0, len(docs))
	for _, d := range docs {
		rec := AttendanceRecord{
			ID:      d.ID(),
			ChildID: d.String("childId"),
			Date:    d.String("date"),
			Reason:  d.String("reason"),
			Note:    d.String("note"),
		}
		if ts, ok := d["createdAt"].(time.Time); ok {
			rec.CreatedAt = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

// AddSleep appends a sleep log entry.
func (r *Repository) AddSleep(ctx context.Context, childID, startTime, endTime string) (SleepLog, error) {
	entry := SleepLog{ChildID: childID, StartTime: startTime, EndTime: endTime, CreatedAt: time.Now().UTC()}
	id, err := r.store.Create(ctx, sleepCollection, store.Doc{
		"childId":   entry.ChildID,
		"startTime": entry.StartTime,
		"endTime":   entry.EndTime,
		"createdAt": entry.CreatedAt,
	})
	if err != nil {
		return SleepLog{}, err
	}
	entry.ID = id
	return entry, nil
}

// ListSleep returns a child's sleep log, newest first.
func (r *Repository) ListSleep(ctx context.Context, childID string) ([]SleepLog, error) {
	docs, err := r.store.Query(ctx, sleepCollection, store.Query{
		Filters: []store.Filter{{Field: "childId", Op: "==", Value: childID}},
		OrderBy: "startTime",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("query sleep logs: %w", err)
	}
	out := make([]SleepLog, 0, len(docs))
	for _, d := range docs {
		entry := SleepLog{
			ID:        d.ID(),
			ChildID:   d.String("childId"),
			StartTime: d.String("startTime"),
			EndTime:   d.String("endTime"),
		}
		if ts, ok := d["createdAt"].(time.Time); ok {
			entry.CreatedAt = ts
		}
		out = append(out, entry)
	}
	return out, nil
}

// AddFood appends a food log entry.
func (r *Repository) AddFood(ctx context.Context, childID, meal, description, mealTime string) (FoodLog, error) {
	entry := FoodLog{ChildID: childID, Meal: meal, Description: description, Time: mealTime, CreatedAt: time.Now().UTC()}
	id, err := r.store.Create(ctx, foodCollection, store.Doc{
		"childId":     entry.ChildID,
		"meal":        entry.Meal,
		"description": entry.Description,
		"time":        entry.Time,
		"createdAt":   entry.CreatedAt,
	})
	if err != nil {
		return FoodLog{}, err
	}
	entry.ID = id
	return entry, nil
}

// ListFood returns a child's food log, newest first.
func (r *Repository) ListFood(ctx context.Context, childID string) ([]FoodLog, error) {
	docs, err := r.store.Query(ctx, foodCollection, store.Query{
		Filters: []store.Filter{{Field: "childId", Op: "==", Value: childID}},
		OrderBy: "time",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("query food logs: %w", err)
	}
	out := make([]FoodLog, 0, len(docs))
	for _, d := range docs {
		entry := FoodLog{
			ID:          d.ID(),
			ChildID:     d.String("childId"),
			Meal:        d.String("meal"),
			Description: d.String("description"),
			Time:        d.String("time"),
		}
		if ts, ok := d["createdAt"].(time.Time); ok {
			entry.CreatedAt = ts
		}
		out = append(out, entry)
	}
	return out, nil
}

// AddImage appends a gallery image reference.
func (r *Repository) AddImage(ctx context.Context, childID, imageURL string) (GalleryImage, error) {
	img := GalleryImage{ChildID: childID, ImageURL: imageURL, UploadedAt: time.Now().UTC()}
	id, err := r.store.Create(ctx, galleryCollection, store.Doc{
		"childId":    img.ChildID,
		"imageUrl":   img.ImageURL,
		"uploadedAt": img.UploadedAt,
	})
	if err != nil {
		return GalleryImage{}, err
	}
	img.ID = id
	return img, nil
}

// ListGallery returns a child's gallery, newest upload first.
func (r *Repository) ListGallery(ctx context.Context, childID string) ([]GalleryImage, error) {
	docs, err := r.store.Query(ctx, galleryCollection, store.Query{
		Filters: []store.Filter{{Field: "childId", Op: "==", Value: childID}},
		OrderBy: "uploadedAt",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	out := make([]GalleryImage, 0, len(docs))
	for _, d := range docs {
		img := GalleryImage{
			ID:       d.ID(),
			ChildID:  d.String("childId"),
			ImageURL: d.String("imageUrl"),
		}
		if ts, ok := d["uploadedAt"].(time.Time); ok {
			img.UploadedAt = ts
		}
		out = append(out, img)
	}
	return out, nil
}

func childFromDoc(d store.Doc) Child {
	c := Child{
		ID:              d.ID(),
		Name:            d.String("name"),
		KindergartenID:  d.String("kindergardenId"),
		ImageURL:        d.String("imageUrl"),
		Status:          d.String("status"),
		HasAbsenceToday: d.Bool("hasAbsenceToday"),
		ImportantInfo:   d.String("importantInfo"),
		Guardians:       stringSlice(d["guardians"]),
		Gallery:         stringSlice(d["gallery"]),
	}
	if h, ok := d["health"].(store.Doc); ok {
		c.Health = Health{Allergies: stringSlice(h["allergies"]), Medicine: stringSlice(h["medicine"])}
	} else if h, ok := d["health"].(map[string]any); ok {
		c.Health = Health{Allergies: stringSlice(h["allergies"]), Medicine: stringSlice(h["medicine"])}
	}
	return c
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
