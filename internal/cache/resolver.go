// Package cache decides, per work unit, whether a previously produced
// stripped intermediate can be reused from the shared store or must be
// recomputed from the raw source.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/theferrit32/gnomad-gks/internal/naming"
	"github.com/theferrit32/gnomad-gks/internal/storage"
)

const (
	// probeAttempts bounds retries of a failing existence probe.
	probeAttempts = 3
	// probeBackoff is the delay between probe attempts.
	probeBackoff = 2 * time.Second
)

// Resolution is the outcome of a cache lookup for one work unit.
type Resolution struct {
	// Hit is true when a usable stripped artifact already exists.
	Hit bool
	// Convention names the address scheme that matched ("current" or
	// "legacy"); empty on a miss.
	Convention string
	// Key is the object key of the cached artifact; empty on a miss.
	Key string
}

// Error represents a cache resolution failure.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Resolver probes the shared store for cached stripped intermediates under
// each known naming convention, newest convention first.
type Resolver struct {
	store       storage.ObjectStore
	bucket      string
	conventions []naming.Convention
	attempts    int
	backoff     time.Duration
}

// NewResolver creates a resolver over the given store and bucket.
func NewResolver(store storage.ObjectStore, bucket string) *Resolver {
	return &Resolver{
		store:       store,
		bucket:      bucket,
		conventions: naming.StrippedConventions(),
		attempts:    probeAttempts,
		backoff:     probeBackoff,
	}
}

// Resolve probes each naming convention in priority order. A "not found"
// on every convention is a miss. A probe failure that is not "not found"-
// shaped fails the work unit after bounded retries: an ambiguous probe
// during a storage outage must not silently trigger hours of recomputation.
func (r *Resolver) Resolve(ctx context.Context, unit naming.WorkUnit) (*Resolution, error) {
	for _, convention := range r.conventions {
		key := convention.Key(unit)
		exists, err := r.probe(ctx, key)
		if err != nil {
			return nil, &Error{
				Message: fmt.Sprintf("existence probe failed for %s", naming.GSURL(r.bucket, key)),
				Cause:   err,
			}
		}
		if exists {
			return &Resolution{Hit: true, Convention: convention.Name, Key: key}, nil
		}
	}
	return &Resolution{Hit: false}, nil
}

// probe retries transient failures; "not found" is a clean false.
func (r *Resolver) probe(ctx context.Context, key string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(r.backoff):
			}
		}
		exists, err := r.store.Exists(ctx, r.bucket, key)
		if err == nil {
			return exists, nil
		}
		lastErr = err
	}
	return false, lastErr
}

// Fetch materializes a cache hit to a local path by streaming it from the
// store. Probes are metadata-only, so this is the first time bytes move.
func (r *Resolver) Fetch(ctx context.Context, res *Resolution, path string) (int64, error) {
	if res == nil || !res.Hit {
		return 0, &Error{Message: "fetch called without a cache hit"}
	}
	n, err := storage.DownloadToFile(ctx, r.store, r.bucket, res.Key, path)
	if err != nil {
		return n, &Error{
			Message: fmt.Sprintf("failed to fetch cached artifact %s", naming.GSURL(r.bucket, res.Key)),
			Cause:   err,
		}
	}
	return n, nil
}
