package records

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/media"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/view"
)

// trackingStore wraps a real in-memory store, counts write dispatches, and
// can be told to fail queries or specific deletes.
type trackingStore struct {
	docstore.Store

	mu         sync.Mutex
	inserts    int
	updates    int
	deletes    int
	failQuery  error
	failDelete map[string]error
}

func (s *trackingStore) Insert(ctx context.Context, collection, ownerID string, doc docstore.Document) (docstore.Document, error) {
	s.mu.Lock()
	s.inserts++
	s.mu.Unlock()
	return s.Store.Insert(ctx, collection, ownerID, doc)
}

func (s *trackingStore) Update(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *trackingStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	s.deletes++
	err := s.failDelete[id]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Delete(ctx, collection, id)
}

func (s *trackingStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	s.mu.Lock()
	err := s.failQuery
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.Query(ctx, q)
}

func (s *trackingStore) writes() (inserts, updates, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts, s.updates, s.deletes
}

func (s *trackingStore) setFailQuery(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQuery = err
}

func (s *trackingStore) setFailDelete(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete == nil {
		s.failDelete = map[string]error{}
	}
	s.failDelete[id] = err
}

// memBlobs is an in-memory media.BlobStore.
type memBlobs struct {
	mu      sync.Mutex
	n       int
	files   map[string]bool
	removed []string
	fail    map[string]error
}

func newMemBlobs(urls ...string) *memBlobs {
	b := &memBlobs{files: map[string]bool{}}
	for _, u := range urls {
		b.files[u] = true
	}
	return b
}

func (b *memBlobs) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	url := fmt.Sprintf("/media/blob-%d", b.n)
	b.files[url] = true
	return url, nil
}

func (b *memBlobs) Remove(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail[url]; err != nil {
		return err
	}
	delete(b.files, url)
	b.removed = append(b.removed, url)
	return nil
}

func (b *memBlobs) Owns(url string) bool {
	return strings.HasPrefix(url, "/media/")
}

func (b *memBlobs) has(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[url]
}

// eventsRecorder captures published change events.
type eventsRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventsRecorder) Publish(ownerID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventsRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind + ":" + ev.Action
	}
	return out
}

type env struct {
	store   *trackingStore
	cache   *view.Cache
	blobs   *memBlobs
	events  *eventsRecorder
	entries *EntryService
	habits  *HabitService
}

func newEnv(t *testing.T, seedBlobs ...string) *env {
	t.Helper()
	store := &trackingStore{Store: docstore.NewMemory()}
	cache := view.NewCache()
	blobs := newMemBlobs(seedBlobs...)
	events := &eventsRecorder{}
	log := zap.NewNop()
	tracker := media.NewTracker(blobs, log)
	return &env{
		store:   store,
		cache:   cache,
		blobs:   blobs,
		events:  events,
		entries: NewEntryService(store, cache, tracker, events, nil, log),
		habits:  NewHabitService(store, cache, events, nil, log),
	}
}

func strp(s string) *string { return &s }

func f64p(f float64) *float64 { return &f }
