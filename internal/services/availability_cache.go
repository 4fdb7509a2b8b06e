package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
)

// AvailabilityCache memoizes a listing's booked ranges for the public
// calendar endpoint. It listens to booking events and drops a listing's
// entry whenever its calendar may have changed.
type AvailabilityCache struct {
	cache *ccache.Cache[[]booking.BookedRange]
	ttl   time.Duration

	// generations counts invalidations per key. A load that overlapped an
	// invalidation must not stay cached.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewAvailabilityCache(ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AvailabilityCache{
		cache:       ccache.New(ccache.Configure[[]booking.BookedRange]().MaxSize(5000)),
		ttl:         ttl,
		generations: make(map[string]uint64),
	}
}

func availabilityKey(kind models.ListingKind, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func (c *AvailabilityCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// Get returns the cached ranges or calls load and caches its result. When
// the listing is invalidated while load runs, the result is returned but
// not kept.
func (c *AvailabilityCache) Get(kind models.ListingKind, id uint, load func() ([]booking.BookedRange, error)) ([]booking.BookedRange, error) {
	key := availabilityKey(kind, id)
	gen := c.generation(key)
	item, err := c.cache.Fetch(key, c.ttl, load)
	if err != nil {
		return nil, err
	}
	if c.generation(key) != gen {
		c.cache.Delete(key)
	}
	return item.Value(), nil
}

func (c *AvailabilityCache) Invalidate(kind models.ListingKind, id uint) {
	key := availabilityKey(kind, id)
	c.mu.Lock()
	c.generations[key]++
	c.mu.Unlock()
	c.cache.Delete(key)
}

// Notify implements booking.Notifier.
func (c *AvailabilityCache) Notify(_ context.Context, ev booking.Event) {
	if ev.Listing.ID != 0 {
		c.Invalidate(ev.Listing.Kind, ev.Listing.ID)
	}
}

func (c *AvailabilityCache) Stop() {
	c.cache.Stop()
}
