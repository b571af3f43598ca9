// Package view maintains per-user snapshots of record listings so reads can
// fall back to the last data a user already saw when the store is
// unreachable. Snapshots are versioned: every mutation bumps a sequence
// counter, and a reload that started before the mutation is discarded
// instead of clobbering newer state.
package view

import (
	"sync"
	"time"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
)

// Cache holds one snapshot per (owner, collection) pair.
type Cache struct {
	mu    sync.RWMutex
	state map[key]*listState
}

type key struct {
	owner      string
	collection string
}

type listState struct {
	seq     uint64
	docs    []docstore.Document
	loaded  bool
	takenAt time.Time
}

func NewCache() *Cache {
	return &Cache{state: make(map[key]*listState)}
}

func (c *Cache) get(owner, collection string) *listState {
	k := key{owner: owner, collection: collection}
	st := c.state[k]
	if st == nil {
		st = &listState{}
		c.state[k] = st
	}
	return st
}

// Seq returns the current version for a listing. Callers snapshot it before
// a slow load and hand it back to Reset so stale results can be rejected.
func (c *Cache) Seq(owner, collection string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if st := c.state[key{owner: owner, collection: collection}]; st != nil {
		return st.seq
	}
	return 0
}

// Get returns a copy of the last snapshot and the time it was taken. ok is
// false when no snapshot has ever been loaded for this listing.
func (c *Cache) Get(owner, collection string) ([]docstore.Document, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state[key{owner: owner, collection: collection}]
	if st == nil || !st.loaded {
		return nil, time.Time{}, false
	}
	return copyDocs(st.docs), st.takenAt, true
}

// Reset installs a snapshot only if no mutation happened since the caller
// read version `since`. It reports whether the snapshot was applied; a
// false return means the load raced a newer write and was discarded.
func (c *Cache) Reset(owner, collection string, docs []docstore.Document, since uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.get(owner, collection)
	if st.seq != since {
		return false
	}
	st.seq++
	st.docs = copyDocs(docs)
	st.loaded = true
	st.takenAt = time.Now().UTC()
	return true
}

// Prepend records a newly created document at the head of the snapshot.
// The version is bumped even when no snapshot is loaded yet.
func (c *Cache) Prepend(owner, collection string, doc docstore.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.get(owner, collection)
	st.seq++
	if !st.loaded {
		return
	}
	docs := make([]docstore.Document, 0, len(st.docs)+1)
	docs = append(docs, doc.Clone())
	docs = append(docs, st.docs...)
	st.docs = docs
}

// Update replaces the snapshot's copy of a document in place, matched by id.
func (c *Cache) Update(owner, collection string, doc docstore.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.get(owner, collection)
	st.seq++
	if !st.loaded {
		return
	}
	id := docstore.String(doc, "id")
	for i, d := range st.docs {
		if docstore.String(d, "id") == id {
			st.docs[i] = doc.Clone()
			return
		}
	}
}

// Remove drops a document from the snapshot by id.
func (c *Cache) Remove(owner, collection, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.get(owner, collection)
	st.seq++
	if !st.loaded {
		return
	}
	docs := st.docs[:0]
	for _, d := range st.docs {
		if docstore.String(d, "id") != id {
			docs = append(docs, d)
		}
	}
	st.docs = docs
}

func copyDocs(docs []docstore.Document) []docstore.Document {
	out := make([]docstore.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
