package records

import (
	"context"
	"strings"
	"time"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
)

// ProgressSummary reports every habit's logged hours around a reference
// date: that day, its Monday-start week, and its calendar month.
type ProgressSummary struct {
	ReferenceDate string          `json:"referenceDate"`
	WeekStart     string          `json:"weekStart"`
	WeekEnd       string          `json:"weekEnd"`
	Habits        []HabitProgress `json:"habits"`
}

// HabitProgress is one habit's buckets against its weekly target.
type HabitProgress struct {
	HabitID     string  `json:"habitId"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	TargetHours float64 `json:"targetHours"`
	Today       float64 `json:"today"`
	ThisWeek    float64 `json:"thisWeek"`
	ThisMonth   float64 `json:"thisMonth"`
	Met         bool    `json:"met"`
}

// Summary aggregates habit activity around localDate, the caller's
// "today". An empty localDate means the current UTC day. Met compares the
// week bucket against the weekly target.
func (s *HabitService) Summary(ctx context.Context, ownerID, localDate string) (ProgressSummary, error) {
	if localDate == "" {
		localDate = time.Now().UTC().Format(DateLayout)
	} else {
		var err error
		localDate, err = validDate("local_date", localDate)
		if err != nil {
			return ProgressSummary{}, err
		}
	}
	ref, _ := time.Parse(DateLayout, localDate)

	weekStart := mondayOf(ref)
	weekEnd := weekStart.AddDate(0, 0, 6)
	monthStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	from := weekStart
	if monthStart.Before(from) {
		from = monthStart
	}
	to := weekEnd
	if monthEnd.After(to) {
		to = monthEnd
	}

	habitDocs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Habits,
		OwnerID:    ownerID,
		Order:      docstore.OrderCreatedDesc,
	})
	if err != nil {
		return ProgressSummary{}, &TransportError{Op: "load habits", Err: err}
	}
	entryDocs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.HabitEntries,
		OwnerID:    ownerID,
		DateFrom:   from.Format(DateLayout),
		DateTo:     to.Format(DateLayout),
		Order:      docstore.OrderDateAsc,
	})
	if err != nil {
		return ProgressSummary{}, &TransportError{Op: "load habit entries", Err: err}
	}

	out := ProgressSummary{
		ReferenceDate: localDate,
		WeekStart:     weekStart.Format(DateLayout),
		WeekEnd:       weekEnd.Format(DateLayout),
		Habits:        []HabitProgress{},
	}
	idx := make(map[string]int, len(habitDocs))
	for _, d := range habitDocs {
		h := habitFromDoc(d)
		idx[h.ID] = len(out.Habits)
		out.Habits = append(out.Habits, HabitProgress{
			HabitID:     h.ID,
			Name:        h.Name,
			Color:       h.Color,
			TargetHours: h.TargetHours,
		})
	}

	monthPrefix := localDate[:7]
	for _, d := range entryDocs {
		e := s.codec.habitEntryFromDoc(d)
		i, ok := idx[e.HabitID]
		if !ok {
			continue
		}
		p := &out.Habits[i]
		if e.Date == localDate {
			p.Today += e.Hours
		}
		if e.Date >= out.WeekStart && e.Date <= out.WeekEnd {
			p.ThisWeek += e.Hours
		}
		if strings.HasPrefix(e.Date, monthPrefix) {
			p.ThisMonth += e.Hours
		}
	}
	for i := range out.Habits {
		p := &out.Habits[i]
		p.Met = p.TargetHours > 0 && p.ThisWeek >= p.TargetHours
	}
	return out, nil
}

// mondayOf returns the Monday of the week containing t.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
