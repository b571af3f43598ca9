package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/view"
)

// HabitService owns habits and their per-day entries. Deleting a habit
// cascades over its entries; the habit row itself is only removed once
// every entry is gone, so a partial failure never strands entries without
// a parent.
type HabitService struct {
	store  docstore.Store
	cache  *view.Cache
	events Events
	codec  codec
	log    *zap.Logger
}

func NewHabitService(store docstore.Store, cache *view.Cache, events Events, enc Encryptor, log *zap.Logger) *HabitService {
	if events == nil {
		events = nopEvents{}
	}
	return &HabitService{
		store:  store,
		cache:  cache,
		events: events,
		codec:  codec{enc: enc, log: log},
		log:    log,
	}
}

// Create validates and persists a new habit. The owner, a name and a
// positive weekly hours target are required; the color defaults when not
// sent.
func (s *HabitService) Create(ctx context.Context, ownerID string, in HabitInput) (Habit, error) {
	if ownerID == "" {
		return Habit{}, &ValidationError{Field: "userId", Reason: "required"}
	}

	name := ""
	if p := firstString(in.Name, in.Title); p != nil {
		name = strings.TrimSpace(*p)
	}
	if name == "" {
		return Habit{}, &ValidationError{Field: "name", Reason: "required"}
	}

	if in.TargetHours == nil {
		return Habit{}, &ValidationError{Field: "targetHours", Reason: "required"}
	}
	if err := validTargetHours(*in.TargetHours); err != nil {
		return Habit{}, err
	}

	description := ""
	if p := firstString(in.Description, in.Content); p != nil {
		description = *p
	}

	color := DefaultHabitColor
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		c, err := validColor(*in.Color)
		if err != nil {
			return Habit{}, err
		}
		color = c
	}

	doc := docstore.Document{
		"userId":      ownerID,
		"name":        name,
		"description": description,
		"targetHours": *in.TargetHours,
		"color":       color,
	}
	stored, err := s.store.Insert(ctx, docstore.Habits, ownerID, doc)
	if err != nil {
		return Habit{}, &TransportError{Op: "create habit", Err: err}
	}
	s.cache.Prepend(ownerID, docstore.Habits, stored)

	habit := habitFromDoc(stored)
	s.events.Publish(ownerID, Event{Action: ActionCreated, Kind: KindHabit, ID: habit.ID, Record: habit})
	return habit, nil
}

// Get returns one habit by id.
func (s *HabitService) Get(ctx context.Context, ownerID, id string) (Habit, error) {
	doc, err := ownedDoc(ctx, s.store, docstore.Habits, KindHabit, ownerID, id)
	if err != nil {
		return Habit{}, err
	}
	return habitFromDoc(doc), nil
}

// List loads the user's habits newest-first, falling back to the last good
// snapshot when the store is unreachable.
func (s *HabitService) List(ctx context.Context, ownerID string) (HabitList, error) {
	since := s.cache.Seq(ownerID, docstore.Habits)
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Habits,
		OwnerID:    ownerID,
		Order:      docstore.OrderCreatedDesc,
	})
	if err != nil {
		snap, takenAt, ok := s.cache.Get(ownerID, docstore.Habits)
		s.log.Warn("habit listing degraded",
			zap.String("user", ownerID),
			zap.Bool("snapshot", ok),
			zap.Error(err))
		if !ok {
			return HabitList{Habits: []Habit{}, Degraded: true}, nil
		}
		return HabitList{Habits: habitsFromDocs(snap), Degraded: true, AsOf: takenAt}, nil
	}
	if !s.cache.Reset(ownerID, docstore.Habits, docs, since) {
		s.log.Debug("discarded stale habit listing", zap.String("user", ownerID))
	}
	return HabitList{Habits: habitsFromDocs(docs)}, nil
}

// Update applies a partial patch to a habit.
func (s *HabitService) Update(ctx context.Context, ownerID, id string, in HabitInput) (Habit, error) {
	current, err := ownedDoc(ctx, s.store, docstore.Habits, KindHabit, ownerID, id)
	if err != nil {
		return Habit{}, err
	}

	patch := docstore.Document{}
	if p := firstString(in.Name, in.Title); p != nil {
		name := strings.TrimSpace(*p)
		if name == "" {
			return Habit{}, &ValidationError{Field: "name", Reason: "required"}
		}
		patch["name"] = name
		if _, legacy := current["title"]; legacy {
			patch["title"] = nil
		}
	}
	if p := firstString(in.Description, in.Content); p != nil {
		patch["description"] = *p
		if _, legacy := current["content"]; legacy {
			patch["content"] = nil
		}
	}
	if in.TargetHours != nil {
		if err := validTargetHours(*in.TargetHours); err != nil {
			return Habit{}, err
		}
		patch["targetHours"] = *in.TargetHours
	}
	if in.Color != nil {
		c, err := validColor(*in.Color)
		if err != nil {
			return Habit{}, err
		}
		patch["color"] = c
	}

	stored, err := s.store.Update(ctx, docstore.Habits, id, patch)
	if err != nil {
		return Habit{}, storeErr("update habit", KindHabit, id, err)
	}
	s.cache.Update(ownerID, docstore.Habits, stored)

	habit := habitFromDoc(stored)
	s.events.Publish(ownerID, Event{Action: ActionUpdated, Kind: KindHabit, ID: habit.ID, Record: habit})
	return habit, nil
}

// Delete removes a habit and every entry logged against it. All entry
// deletes are dispatched concurrently and every one is attempted; the habit
// itself is deleted only after the last entry is gone. On partial failure
// the habit stays, and the surviving state is still consistent.
func (s *HabitService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := ownedDoc(ctx, s.store, docstore.Habits, KindHabit, ownerID, id); err != nil {
		return err
	}

	children, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.HabitEntries,
		OwnerID:    ownerID,
		Equals:     map[string]string{"habitId": id},
	})
	if err != nil {
		return &TransportError{Op: "load habit entries", Err: err}
	}

	errs := make([]error, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		wg.Add(1)
		go func(i int, childID string) {
			defer wg.Done()
			err := s.store.Delete(ctx, docstore.HabitEntries, childID)
			if err != nil && !errors.Is(err, docstore.ErrNotFound) {
				errs[i] = fmt.Errorf("habit entry %s: %w", childID, err)
			}
		}(i, docstore.String(child, "id"))
	}
	wg.Wait()
	if combined := multierr.Combine(errs...); combined != nil {
		s.log.Error("habit cascade incomplete, habit kept",
			zap.String("habit", id),
			zap.Int("entries", len(children)),
			zap.Error(combined))
		return &TransportError{Op: "delete habit entries", Err: combined}
	}

	if err := s.store.Delete(ctx, docstore.Habits, id); err != nil {
		return storeErr("delete habit", KindHabit, id, err)
	}
	s.cache.Remove(ownerID, docstore.Habits, id)
	s.events.Publish(ownerID, Event{Action: ActionDeleted, Kind: KindHabit, ID: id})
	return nil
}

// Refresh reloads the habit snapshot in the background, discarding the
// result if it raced a mutation.
func (s *HabitService) Refresh(ctx context.Context, ownerID string) error {
	since := s.cache.Seq(ownerID, docstore.Habits)
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Habits,
		OwnerID:    ownerID,
		Order:      docstore.OrderCreatedDesc,
	})
	if err != nil {
		return &TransportError{Op: "refresh habits", Err: err}
	}
	if !s.cache.Reset(ownerID, docstore.Habits, docs, since) {
		s.log.Debug("discarded stale habit refresh", zap.String("user", ownerID))
	}
	return nil
}

// CreateEntry logs hours against a habit. The habit must exist and belong
// to the caller; the date is required.
func (s *HabitService) CreateEntry(ctx context.Context, ownerID, habitID string, in HabitEntryInput) (HabitEntry, error) {
	if _, err := ownedDoc(ctx, s.store, docstore.Habits, KindHabit, ownerID, habitID); err != nil {
		return HabitEntry{}, err
	}

	if in.Date == nil || strings.TrimSpace(*in.Date) == "" {
		return HabitEntry{}, &ValidationError{Field: "date", Reason: "required"}
	}
	date, err := validDate("date", *in.Date)
	if err != nil {
		return HabitEntry{}, err
	}

	hours := 0.0
	if in.Hours != nil {
		if err := validHours(*in.Hours); err != nil {
			return HabitEntry{}, err
		}
		hours = *in.Hours
	}

	notes := ""
	if in.Notes != nil {
		notes = *in.Notes
	}
	sealed, err := s.codec.seal(notes)
	if err != nil {
		return HabitEntry{}, err
	}

	doc := docstore.Document{
		"userId":  ownerID,
		"habitId": habitID,
		"date":    date,
		"hours":   hours,
		"notes":   sealed,
	}
	stored, err := s.store.Insert(ctx, docstore.HabitEntries, ownerID, doc)
	if err != nil {
		return HabitEntry{}, &TransportError{Op: "create habit entry", Err: err}
	}

	entry := s.codec.habitEntryFromDoc(stored)
	s.events.Publish(ownerID, Event{Action: ActionCreated, Kind: KindHabitEntry, ID: entry.ID, Record: entry})
	return entry, nil
}

// ListEntries returns a habit's entries oldest-first, optionally bounded by
// date. These drill-down listings are not snapshotted: on store failure
// they degrade to an empty marked listing.
func (s *HabitService) ListEntries(ctx context.Context, ownerID, habitID string, r DateRange) (HabitEntryList, error) {
	if err := validRange(r); err != nil {
		return HabitEntryList{}, err
	}
	if _, err := ownedDoc(ctx, s.store, docstore.Habits, KindHabit, ownerID, habitID); err != nil {
		return HabitEntryList{}, err
	}

	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.HabitEntries,
		OwnerID:    ownerID,
		Equals:     map[string]string{"habitId": habitID},
		DateFrom:   r.From,
		DateTo:     r.To,
		Order:      docstore.OrderDateAsc,
	})
	if err != nil {
		s.log.Warn("habit entry listing degraded",
			zap.String("user", ownerID),
			zap.String("habit", habitID),
			zap.Error(err))
		return HabitEntryList{Entries: []HabitEntry{}, Degraded: true}, nil
	}
	return HabitEntryList{Entries: s.habitEntriesFromDocs(docs)}, nil
}

// UpdateEntry applies a partial patch to a habit entry. The entry must
// belong to both the caller and the habit in the URL.
func (s *HabitService) UpdateEntry(ctx context.Context, ownerID, habitID, entryID string, in HabitEntryInput) (HabitEntry, error) {
	current, err := ownedDoc(ctx, s.store, docstore.HabitEntries, KindHabitEntry, ownerID, entryID)
	if err != nil {
		return HabitEntry{}, err
	}
	if docstore.String(current, "habitId") != habitID {
		return HabitEntry{}, &NotFoundError{Kind: KindHabitEntry, ID: entryID}
	}

	patch := docstore.Document{}
	if in.Date != nil {
		date, err := validDate("date", *in.Date)
		if err != nil {
			return HabitEntry{}, err
		}
		patch["date"] = date
	}
	if in.Hours != nil {
		if err := validHours(*in.Hours); err != nil {
			return HabitEntry{}, err
		}
		patch["hours"] = *in.Hours
	}
	if in.Notes != nil {
		sealed, err := s.codec.seal(*in.Notes)
		if err != nil {
			return HabitEntry{}, err
		}
		patch["notes"] = sealed
	}

	stored, err := s.store.Update(ctx, docstore.HabitEntries, entryID, patch)
	if err != nil {
		return HabitEntry{}, storeErr("update habit entry", KindHabitEntry, entryID, err)
	}

	entry := s.codec.habitEntryFromDoc(stored)
	s.events.Publish(ownerID, Event{Action: ActionUpdated, Kind: KindHabitEntry, ID: entry.ID, Record: entry})
	return entry, nil
}

// DeleteEntry removes a single habit entry.
func (s *HabitService) DeleteEntry(ctx context.Context, ownerID, habitID, entryID string) error {
	current, err := ownedDoc(ctx, s.store, docstore.HabitEntries, KindHabitEntry, ownerID, entryID)
	if err != nil {
		return err
	}
	if docstore.String(current, "habitId") != habitID {
		return &NotFoundError{Kind: KindHabitEntry, ID: entryID}
	}
	if err := s.store.Delete(ctx, docstore.HabitEntries, entryID); err != nil {
		return storeErr("delete habit entry", KindHabitEntry, entryID, err)
	}
	s.events.Publish(ownerID, Event{Action: ActionDeleted, Kind: KindHabitEntry, ID: entryID})
	return nil
}

func habitsFromDocs(docs []docstore.Document) []Habit {
	out := make([]Habit, 0, len(docs))
	for _, d := range docs {
		out = append(out, habitFromDoc(d))
	}
	return out
}

func (s *HabitService) habitEntriesFromDocs(docs []docstore.Document) []HabitEntry {
	out := make([]HabitEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.codec.habitEntryFromDoc(d))
	}
	return out
}

func validTargetHours(h float64) error {
	if h <= 0 {
		return &ValidationError{Field: "targetHours", Reason: "must be positive"}
	}
	if h > 168 {
		return &ValidationError{Field: "targetHours", Reason: "cannot exceed 168"}
	}
	return nil
}

func validHours(h float64) error {
	if h < 0 {
		return &ValidationError{Field: "hours", Reason: "cannot be negative"}
	}
	if h > 24 {
		return &ValidationError{Field: "hours", Reason: "cannot exceed 24"}
	}
	return nil
}
