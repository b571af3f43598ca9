// Package records holds the domain services for the three record kinds the
// app stores: journal entries, habits, and per-day habit entries. Services
// validate input, normalize legacy field names onto the canonical schema,
// persist through the document store, keep the listing snapshots current,
// and fan change events out to live clients.
package records

import (
	"encoding/json"
	"time"
)

// Record kinds as they appear in change events and error messages.
const (
	KindEntry      = "entry"
	KindHabit      = "habit"
	KindHabitEntry = "habitEntry"
)

// DateLayout is the wire format for record dates.
const DateLayout = "2006-01-02"

// DefaultHabitColor is applied when a habit is created without a color.
const DefaultHabitColor = "#6366F1"

// UntitledFallback is what an entry with no usable title reads as.
const UntitledFallback = "Untitled"

// Entry is a journal entry in canonical form.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Date      *string   `json:"date"`
	MediaURLs []string  `json:"mediaUrls"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Habit is a tracked habit in canonical form. TargetHours is the weekly
// goal.
type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TargetHours float64   `json:"targetHours"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HabitEntry logs hours against a habit on a single day.
type HabitEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	HabitID   string    `json:"habitId"`
	Date      string    `json:"date"`
	Hours     float64   `json:"hours"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OptionalString is a JSON field that distinguishes an absent key from an
// explicit null. The zero value reads as absent.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// EntryInput carries the writable fields of an entry. Legacy clients send
// name/description; the canonical title/content win when both appear. On
// update, nil pointers and unset fields are left untouched, and an explicit
// null (or empty) date clears it.
type EntryInput struct {
	Title       *string        `json:"title"`
	Name        *string        `json:"name"`
	Content     *string        `json:"content"`
	Description *string        `json:"description"`
	Date        OptionalString `json:"date"`
	MediaURLs   *[]string      `json:"mediaUrls"`
}

// HabitInput carries the writable fields of a habit. The legacy synonyms
// run the other way around here: title for name, content for description.
type HabitInput struct {
	Name        *string  `json:"name"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Content     *string  `json:"content"`
	TargetHours *float64 `json:"targetHours"`
	Color       *string  `json:"color"`
}

// HabitEntryInput carries the writable fields of a habit entry.
type HabitEntryInput struct {
	Date  *string  `json:"date"`
	Hours *float64 `json:"hours"`
	Notes *string  `json:"notes"`
}

// DateRange bounds a listing by the record date, both ends inclusive.
type DateRange struct {
	From string
	To   string
}

// EntryList is a listing plus the health of the load that produced it.
// Degraded listings come from the last good snapshot (AsOf says how old)
// or are empty when no snapshot exists yet.
type EntryList struct {
	Entries  []Entry   `json:"entries"`
	Degraded bool      `json:"degraded"`
	AsOf     time.Time `json:"asOf,omitzero"`
}

// HabitList is the habit listing counterpart of EntryList.
type HabitList struct {
	Habits   []Habit   `json:"habits"`
	Degraded bool      `json:"degraded"`
	AsOf     time.Time `json:"asOf,omitzero"`
}

// HabitEntryList is a per-habit drill-down listing. It degrades to empty on
// store failure; these listings are not snapshotted.
type HabitEntryList struct {
	Entries  []HabitEntry `json:"entries"`
	Degraded bool         `json:"degraded"`
}

// Change event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes a record change for fan-out to live clients.
type Event struct {
	Action string `json:"action"`
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Record any    `json:"record,omitempty"`
}

// Events receives record change notifications. The hub in internal/events
// implements it; a nil Events on a service silently drops them.
type Events interface {
	Publish(ownerID string, ev Event)
}

type nopEvents struct{}

func (nopEvents) Publish(string, Event) {}

// Encryptor seals free-text fields at rest. Open must return its input
// unchanged for values that are not sealed, so plaintext written before
// encryption was enabled keeps reading back.
type Encryptor interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}
