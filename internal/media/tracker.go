package media

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Tracker reconciles the media URLs a record references with the blobs on
// disk. Sweeps run after the record mutation has committed, so a failed
// sweep leaves orphaned files behind, never dangling references.
type Tracker struct {
	blobs BlobStore
	log   *zap.Logger
}

func NewTracker(blobs BlobStore, log *zap.Logger) *Tracker {
	return &Tracker{blobs: blobs, log: log}
}

// Diff returns the URLs present in before but absent from after, preserving
// the order of before and dropping duplicates.
func Diff(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	seen := make(map[string]struct{}, len(before))
	var removed []string
	for _, u := range before {
		if _, ok := keep[u]; ok {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		removed = append(removed, u)
	}
	return removed
}

// CleanupOrphans deletes the blobs behind the given URLs. URLs the store
// does not own are skipped. Every owned URL is attempted regardless of
// earlier failures; the failures come back aggregated in a *CleanupError.
func (t *Tracker) CleanupOrphans(ctx context.Context, urls []string) error {
	var owned []string
	for _, u := range urls {
		if t.blobs.Owns(u) {
			owned = append(owned, u)
		} else if u != "" {
			t.log.Debug("skipping unmanaged media url", zap.String("url", u))
		}
	}
	if len(owned) == 0 {
		return nil
	}

	errs := make([]error, len(owned))
	var wg sync.WaitGroup
	for i, u := range owned {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			errs[i] = t.blobs.Remove(ctx, u)
		}(i, u)
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, owned[i])
			t.log.Warn("orphaned blob not removed", zap.String("url", owned[i]), zap.Error(err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &CleanupError{Failed: failed, Err: multierr.Combine(errs...)}
}
