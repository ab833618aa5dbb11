// Package session implements C5: the per-transport-connection, in-memory
// session cache that suppresses recently-delivered entries from bulk
// reads and halves the expansion slot fraction on every successive bulk
// read (spec.md §4.5).
//
// Grounded on the teacher's in-process session bookkeeping pattern in
// internal/daemon (connection-scoped maps keyed by an opaque handle);
// generalized here to the three-phase hidden/title-only/expired
// lifecycle this spec requires instead of the teacher's connection
// liveness tracking.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hmemdev/hmem/internal/config"
)

// Phase is where an entry sits in the three-phase lifecycle.
type Phase int

const (
	// Expired means the entry is not in the cache at all (or aged out).
	Expired Phase = iota
	Hidden
	TitleOnly
)

type entry struct {
	deliveredAt time.Time
	promoted    bool
}

// Cache is one session's delivery bookkeeping. Zero value is not usable;
// construct with New. Safe for concurrent use — a transport may serve
// one connection from a single goroutine in practice, but the type does
// not assume it.
type Cache struct {
	// Handle identifies this cache instance for correlation in logs
	// across a multi-connection transport (spec.md §4.5 scopes one
	// cache per connection; Handle lets structured logs reference which
	// one without leaking connection internals).
	Handle    string
	mu        sync.Mutex
	windows   config.SessionWindows
	delivered map[string]entry
	bulkReads int
	now       func() time.Time
}

// New creates an empty session cache using windows from cfg.
func New(windows config.SessionWindows) *Cache {
	return &Cache{
		Handle:    uuid.NewString(),
		windows:   windows,
		delivered: make(map[string]entry),
		now:       time.Now,
	}
}

// RegisterDelivered records ids as delivered at the current time (only
// those not already present — a re-delivered ID keeps its original
// timestamp), marks promotedIds accordingly, increments bulkReads, and
// prunes expired entries.
func (c *Cache) RegisterDelivered(ids []string, promotedIds map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, id := range ids {
		if _, ok := c.delivered[id]; ok {
			continue
		}
		c.delivered[id] = entry{deliveredAt: now, promoted: promotedIds[id]}
	}
	c.bulkReads++
	c.pruneLocked(now)
}

// PhaseOf reports id's current lifecycle phase.
func (c *Cache) PhaseOf(id string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.delivered[id]
	if !ok {
		return Expired
	}
	return c.phaseLocked(e, c.now())
}

func (c *Cache) phaseLocked(e entry, now time.Time) Phase {
	age := now.Sub(e.deliveredAt)
	if age < c.windows.Hidden {
		return Hidden
	}
	titleOnlyWindow := c.windows.TitleOnly
	if e.promoted {
		titleOnlyWindow = c.windows.TitleOnlyPromoted
	}
	if age < titleOnlyWindow {
		return TitleOnly
	}
	return Expired
}

// SlotFraction is 0.5^bulkReads, the per-round halving factor C4 applies
// to V2 selection's slot sizing.
func (c *Cache) SlotFraction() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return math.Pow(0.5, float64(c.bulkReads))
}

// Reset clears the cache and the bulk-read counter.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = make(map[string]entry)
	c.bulkReads = 0
}

// Prune removes every entry that has aged past Expired, keeping the map
// from growing unbounded across a long-lived connection.
func (c *Cache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
}

func (c *Cache) pruneLocked(now time.Time) {
	for id, e := range c.delivered {
		if c.phaseLocked(e, now) == Expired {
			delete(c.delivered, id)
		}
	}
}
