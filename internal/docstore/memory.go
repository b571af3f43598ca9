package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same merge and query semantics as
// the Postgres implementation. It backs tests and the no-database dev mode.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]map[string]*memDoc
	seq  int64
}

type memDoc struct {
	ownerID   string
	fields    Document
	createdAt time.Time
	updatedAt time.Time
	seq       int64
}

func NewMemory() *Memory {
	return &Memory{cols: make(map[string]map[string]*memDoc)}
}

func (m *Memory) Insert(ctx context.Context, collection, ownerID string, doc Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.cols[collection]
	if col == nil {
		col = make(map[string]*memDoc)
		m.cols[collection] = col
	}

	m.seq++
	now := time.Now().UTC()
	stored := &memDoc{
		ownerID:   ownerID,
		fields:    doc.Clone(),
		createdAt: now,
		updatedAt: now,
		seq:       m.seq,
	}
	id := uuid.NewString()
	col[id] = stored
	return stored.merged(id), nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.merged(id), nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range fields {
		stored.fields[k] = cloneValue(v)
	}
	stored.updatedAt = time.Now().UTC()
	return stored.merged(id), nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cols[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.cols[collection], id)
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type match struct {
		id  string
		doc *memDoc
	}
	var matches []match
	for id, stored := range m.cols[q.Collection] {
		if stored.ownerID != q.OwnerID {
			continue
		}
		if !matchesEquals(stored.fields, q.Equals) {
			continue
		}
		if q.DateFrom != "" || q.DateTo != "" {
			date := String(stored.fields, "date")
			if date == "" {
				continue
			}
			if q.DateFrom != "" && date < q.DateFrom {
				continue
			}
			if q.DateTo != "" && date > q.DateTo {
				continue
			}
		}
		matches = append(matches, match{id: id, doc: stored})
	}

	switch q.Order {
	case OrderDateAsc:
		sort.Slice(matches, func(i, j int) bool {
			di, dj := String(matches[i].doc.fields, "date"), String(matches[j].doc.fields, "date")
			if di != dj {
				return di < dj
			}
			return matches[i].doc.seq < matches[j].doc.seq
		})
	default:
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].doc.seq > matches[j].doc.seq
		})
	}

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	out := make([]Document, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.doc.merged(m.id))
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cols[collection]), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (d *memDoc) merged(id string) Document {
	out := d.fields.Clone()
	out["id"] = id
	out["createdAt"] = d.createdAt
	out["updatedAt"] = d.updatedAt
	return out
}

func matchesEquals(fields Document, equals map[string]string) bool {
	for k, want := range equals {
		if String(fields, k) != want {
			return false
		}
	}
	return true
}
