// Package docstore provides the document database the record services are
// built on: named collections of owner-scoped JSON documents with equality
// and date-range filtering. Two implementations exist, a Postgres JSONB
// store used in production and an in-memory store used by tests and as a
// fallback when no database is configured.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an id does not resolve to a stored document.
var ErrNotFound = errors.New("document not found")

// Collection names used by the application.
const (
	Entries      = "entries"
	Habits       = "habits"
	HabitEntries = "habit_entries"
)

// Document is a stored JSON object. Documents returned by a Store include
// the reserved fields "id", "createdAt" and "updatedAt" merged in; callers
// never write those fields themselves.
type Document map[string]any

// Clone returns a copy of the document deep enough that callers can mutate
// maps and slices in the result without aliasing stored state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case Document:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	default:
		return v
	}
}

// Order selects the sort applied to query results.
type Order int

const (
	// OrderCreatedDesc sorts newest-first by creation time.
	OrderCreatedDesc Order = iota
	// OrderDateAsc sorts oldest-first by the document's "date" field.
	OrderDateAsc
)

// Query describes a filtered listing over one collection. OwnerID is
// mandatory: every read is scoped to a single owner. DateFrom/DateTo are
// inclusive YYYY-MM-DD bounds applied to the document's "date" field;
// documents without a date never match a bounded query.
type Query struct {
	Collection string
	OwnerID    string
	Equals     map[string]string
	DateFrom   string
	DateTo     string
	Order      Order
	Limit      int
}

// Store is the handle to the document database. A Store is constructed once
// at startup and passed explicitly to everything that needs it; Close
// releases the underlying backend.
type Store interface {
	// Insert persists doc into collection under a freshly assigned id and
	// returns the stored form with id and timestamps merged in.
	Insert(ctx context.Context, collection, ownerID string, doc Document) (Document, error)

	// Get returns a single document by id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Update merges fields into an existing document. Fields absent from the
	// patch are left untouched; a field whose value is nil is stored as an
	// explicit JSON null. updatedAt is refreshed even when the patch is
	// empty. Returns the stored form after the merge, or ErrNotFound.
	Update(ctx context.Context, collection, id string, fields Document) (Document, error)

	// Delete removes a document, returning ErrNotFound when id is absent.
	Delete(ctx context.Context, collection, id string) error

	// Query returns all matching documents in the requested order.
	Query(ctx context.Context, q Query) ([]Document, error)

	// Count reports the number of documents in a collection across owners.
	Count(ctx context.Context, collection string) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// String reads a string field from a document, returning "" when the field
// is absent, null, or not a string.
func String(d Document, key string) string {
	s, _ := d[key].(string)
	return s
}

// Number reads a numeric field from a document. JSON decoding and the
// Postgres text extraction both hand numbers back as float64; anything else
// reads as 0.
func Number(d Document, key string) float64 {
	switch n := d[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// StringSlice reads a string-sequence field from a document. Absent and null
// both read as an empty slice; non-string elements are skipped.
func StringSlice(d Document, key string) []string {
	switch v := d[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// Time reads a timestamp field from a document, accepting both time.Time
// (fresh from a store) and RFC 3339 strings (documents that crossed a JSON
// boundary). The zero time is returned when the field is absent or invalid.
func Time(d Document, key string) time.Time {
	switch t := d[key].(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}
