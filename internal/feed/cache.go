// Package feed maintains the process-wide snapshot of external market
// candidates used for reconciliation.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

const (
	// DefaultTTL is how long a snapshot stays valid without a forced
	// refresh.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxWait bounds how long a forced refresh waits on another
	// in-flight fetch before proceeding regardless.
	DefaultMaxWait = 3 * time.Second

	waitPoll = 100 * time.Millisecond
)

// Cache is a TTL snapshot of external candidates. Readers never block longer
// than a short bounded wait: during an in-flight fetch they receive the
// previous snapshot, and a fetch failure degrades to stale data rather than
// an error. Snapshots are swapped atomically only after a complete fetch.
type Cache struct {
	feed    domain.ExternalFeed
	ttl     time.Duration
	maxWait time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	snapshot  []domain.ExternalCandidate
	lastFetch time.Time

	fetching atomic.Bool
	group    singleflight.Group
}

// NewCache creates a feed cache around the given fetcher. Zero ttl or maxWait
// fall back to the defaults.
func NewCache(feed domain.ExternalFeed, ttl, maxWait time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Cache{feed: feed, ttl: ttl, maxWait: maxWait, logger: logger}
}

// Candidates returns the current snapshot, refreshing it first when the TTL
// has lapsed or force is set. It never returns an error: on any failure the
// previous snapshot (possibly empty) is returned.
func (c *Cache) Candidates(ctx context.Context, force bool) []domain.ExternalCandidate {
	if force {
		c.awaitInflight(ctx)
		return c.fetch(ctx)
	}

	c.mu.Lock()
	fresh := time.Since(c.lastFetch) < c.ttl && len(c.snapshot) > 0
	current := c.copySnapshotLocked()
	c.mu.Unlock()

	if fresh {
		return current
	}

	// Someone else is already fetching: hand back the previous snapshot
	// instead of queueing behind the network call.
	if c.fetching.Load() {
		return current
	}

	got, _, _ := c.group.Do("refresh", func() (any, error) {
		return c.fetch(ctx), nil
	})
	return got.([]domain.ExternalCandidate)
}

// Age returns how old the current snapshot is.
func (c *Cache) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFetch.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(c.lastFetch)
}

// awaitInflight waits up to maxWait for an in-flight fetch to finish. If it
// is still running after that, the stuck flag is cleared and the caller
// proceeds; a wedged fetch must never deadlock forced refreshes.
func (c *Cache) awaitInflight(ctx context.Context) {
	if !c.fetching.Load() {
		return
	}
	deadline := time.Now().Add(c.maxWait)
	for c.fetching.Load() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(waitPoll):
		}
	}
	if c.fetching.CompareAndSwap(true, false) {
		c.logger.Warn("feed cache: in-flight fetch exceeded wait, forcing refresh")
	}
}

// fetch performs one full bulk fetch and publishes the result. A failed or
// empty open fetch falls back to the all-candidates feed; a total failure
// keeps the previous snapshot.
func (c *Cache) fetch(ctx context.Context) []domain.ExternalCandidate {
	c.fetching.Store(true)
	defer c.fetching.Store(false)

	candidates, err := c.feed.FetchOpenCandidates(ctx)
	if err != nil {
		c.logger.Warn("feed cache: open fetch failed", slog.String("error", err.Error()))
	}
	if len(candidates) == 0 {
		all, allErr := c.feed.FetchAllCandidates(ctx)
		if allErr != nil {
			c.logger.Warn("feed cache: fallback fetch failed", slog.String("error", allErr.Error()))
		}
		candidates = all
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(candidates) == 0 {
		// Nothing complete to publish; serve the old snapshot.
		return c.copySnapshotLocked()
	}

	c.snapshot = candidates
	c.lastFetch = time.Now()
	c.logger.Debug("feed cache: snapshot refreshed", slog.Int("candidates", len(candidates)))
	return c.copySnapshotLocked()
}

func (c *Cache) copySnapshotLocked() []domain.ExternalCandidate {
	out := make([]domain.ExternalCandidate, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}
