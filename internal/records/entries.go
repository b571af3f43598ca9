package records

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/media"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/view"
)

// EntryService owns journal entries end to end: validation, persistence,
// the listing snapshot, attachment cleanup, and change events.
type EntryService struct {
	store   docstore.Store
	cache   *view.Cache
	tracker *media.Tracker
	events  Events
	codec   codec
	log     *zap.Logger
}

func NewEntryService(store docstore.Store, cache *view.Cache, tracker *media.Tracker, events Events, enc Encryptor, log *zap.Logger) *EntryService {
	if events == nil {
		events = nopEvents{}
	}
	return &EntryService{
		store:   store,
		cache:   cache,
		tracker: tracker,
		events:  events,
		codec:   codec{enc: enc, log: log},
		log:     log,
	}
}

// Create validates and persists a new entry. A date that is absent, null,
// or blank is simply not stored; the other fields default to empty.
func (s *EntryService) Create(ctx context.Context, ownerID string, in EntryInput) (Entry, error) {
	title := ""
	if p := firstString(in.Title, in.Name); p != nil {
		title = strings.TrimSpace(*p)
	}
	content := ""
	if p := firstString(in.Content, in.Description); p != nil {
		content = *p
	}
	sealed, err := s.codec.seal(content)
	if err != nil {
		return Entry{}, err
	}

	urls := []string{}
	if in.MediaURLs != nil {
		urls = append(urls, *in.MediaURLs...)
	}

	doc := docstore.Document{
		"userId":    ownerID,
		"title":     title,
		"content":   sealed,
		"mediaUrls": urls,
	}
	if in.Date.Set && in.Date.Value != nil && strings.TrimSpace(*in.Date.Value) != "" {
		date, err := validDate("date", *in.Date.Value)
		if err != nil {
			return Entry{}, err
		}
		doc["date"] = date
	}

	stored, err := s.store.Insert(ctx, docstore.Entries, ownerID, doc)
	if err != nil {
		return Entry{}, &TransportError{Op: "create entry", Err: err}
	}
	s.cache.Prepend(ownerID, docstore.Entries, stored)

	entry := s.codec.entryFromDoc(stored)
	s.events.Publish(ownerID, Event{Action: ActionCreated, Kind: KindEntry, ID: entry.ID, Record: entry})
	return entry, nil
}

// Get returns one entry by id.
func (s *EntryService) Get(ctx context.Context, ownerID, id string) (Entry, error) {
	doc, err := ownedDoc(ctx, s.store, docstore.Entries, KindEntry, ownerID, id)
	if err != nil {
		return Entry{}, err
	}
	return s.codec.entryFromDoc(doc), nil
}

// List loads the user's entries newest-first, optionally bounded by date.
// When the store is unreachable the last good snapshot is served instead,
// marked degraded; a user with no snapshot gets an empty degraded listing.
func (s *EntryService) List(ctx context.Context, ownerID string, r DateRange) (EntryList, error) {
	if err := validRange(r); err != nil {
		return EntryList{}, err
	}

	since := s.cache.Seq(ownerID, docstore.Entries)
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Entries,
		OwnerID:    ownerID,
		DateFrom:   r.From,
		DateTo:     r.To,
		Order:      docstore.OrderCreatedDesc,
	})
	if err != nil {
		return s.degradedEntries(ownerID, r, err), nil
	}

	if r.From == "" && r.To == "" {
		// Full listings refresh the snapshot unless a mutation raced the
		// load, in which case the older result is discarded.
		if !s.cache.Reset(ownerID, docstore.Entries, docs, since) {
			s.log.Debug("discarded stale entry listing", zap.String("user", ownerID))
		}
	}
	return EntryList{Entries: s.entriesFromDocs(docs)}, nil
}

func (s *EntryService) degradedEntries(ownerID string, r DateRange, cause error) EntryList {
	docs, takenAt, ok := s.cache.Get(ownerID, docstore.Entries)
	s.log.Warn("entry listing degraded",
		zap.String("user", ownerID),
		zap.Bool("snapshot", ok),
		zap.Error(cause))
	if !ok {
		return EntryList{Entries: []Entry{}, Degraded: true}
	}
	if r.From != "" || r.To != "" {
		docs = filterByDate(docs, r)
	}
	return EntryList{Entries: s.entriesFromDocs(docs), Degraded: true, AsOf: takenAt}
}

// Update applies a partial patch. Absent fields stay untouched; an explicit
// null or blank date clears it. Writing through a legacy synonym migrates
// the document to the canonical key.
func (s *EntryService) Update(ctx context.Context, ownerID, id string, in EntryInput) (Entry, error) {
	current, err := ownedDoc(ctx, s.store, docstore.Entries, KindEntry, ownerID, id)
	if err != nil {
		return Entry{}, err
	}

	patch := docstore.Document{}
	if p := firstString(in.Title, in.Name); p != nil {
		patch["title"] = strings.TrimSpace(*p)
		if _, legacy := current["name"]; legacy {
			patch["name"] = nil
		}
	}
	if p := firstString(in.Content, in.Description); p != nil {
		sealed, err := s.codec.seal(*p)
		if err != nil {
			return Entry{}, err
		}
		patch["content"] = sealed
		if _, legacy := current["description"]; legacy {
			patch["description"] = nil
		}
	}
	if in.Date.Set {
		if in.Date.Value == nil || strings.TrimSpace(*in.Date.Value) == "" {
			patch["date"] = nil
		} else {
			date, err := validDate("date", *in.Date.Value)
			if err != nil {
				return Entry{}, err
			}
			patch["date"] = date
		}
	}
	if in.MediaURLs != nil {
		patch["mediaUrls"] = *in.MediaURLs
	}

	stored, err := s.store.Update(ctx, docstore.Entries, id, patch)
	if err != nil {
		return Entry{}, storeErr("update entry", KindEntry, id, err)
	}
	s.cache.Update(ownerID, docstore.Entries, stored)

	entry := s.codec.entryFromDoc(stored)
	s.events.Publish(ownerID, Event{Action: ActionUpdated, Kind: KindEntry, ID: entry.ID, Record: entry})

	// The record is committed; dropped attachments are swept afterwards so
	// a sweep failure can only leave orphaned files, never broken links.
	if in.MediaURLs != nil {
		removed := media.Diff(docstore.StringSlice(current, "mediaUrls"), *in.MediaURLs)
		if len(removed) > 0 {
			if err := s.tracker.CleanupOrphans(ctx, removed); err != nil {
				s.log.Warn("entry media sweep incomplete", zap.String("entry", id), zap.Error(err))
			}
		}
	}
	return entry, nil
}

// Delete removes an entry and then sweeps its attachments.
func (s *EntryService) Delete(ctx context.Context, ownerID, id string) error {
	current, err := ownedDoc(ctx, s.store, docstore.Entries, KindEntry, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, docstore.Entries, id); err != nil {
		return storeErr("delete entry", KindEntry, id, err)
	}
	s.cache.Remove(ownerID, docstore.Entries, id)
	s.events.Publish(ownerID, Event{Action: ActionDeleted, Kind: KindEntry, ID: id})

	if urls := docstore.StringSlice(current, "mediaUrls"); len(urls) > 0 {
		if err := s.tracker.CleanupOrphans(ctx, urls); err != nil {
			s.log.Warn("entry media sweep incomplete", zap.String("entry", id), zap.Error(err))
		}
	}
	return nil
}

// Refresh reloads the listing snapshot in the background. A reload that
// raced a mutation is discarded; the next full List rebuilds it.
func (s *EntryService) Refresh(ctx context.Context, ownerID string) error {
	since := s.cache.Seq(ownerID, docstore.Entries)
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Entries,
		OwnerID:    ownerID,
		Order:      docstore.OrderCreatedDesc,
	})
	if err != nil {
		return &TransportError{Op: "refresh entries", Err: err}
	}
	if !s.cache.Reset(ownerID, docstore.Entries, docs, since) {
		s.log.Debug("discarded stale entry refresh", zap.String("user", ownerID))
	}
	return nil
}

func (s *EntryService) entriesFromDocs(docs []docstore.Document) []Entry {
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.codec.entryFromDoc(d))
	}
	return out
}

func filterByDate(docs []docstore.Document, r DateRange) []docstore.Document {
	var out []docstore.Document
	for _, d := range docs {
		date := docstore.String(d, "date")
		if date == "" {
			continue
		}
		if r.From != "" && date < r.From {
			continue
		}
		if r.To != "" && date > r.To {
			continue
		}
		out = append(out, d)
	}
	return out
}
