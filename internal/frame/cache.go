package frame

import (
	"sync/atomic"
	"time"
)

// Cache holds the single most recent encoded frame. Every ingestion source
// writes into it (last write wins) and every viewer loop reads from it.
// Replacement is an atomic pointer swap, so readers always see a complete
// frame, either the old one or the new one.
type Cache struct {
	current atomic.Pointer[Encoded]
}

func NewCache() *Cache {
	return &Cache{}
}

// Set installs f as the latest frame. The caller hands off ownership and must
// not mutate f afterwards.
func (c *Cache) Set(f *Encoded) {
	if f == nil {
		return
	}
	c.current.Store(f)
}

// Get returns the latest frame, or nil if no source has produced one yet.
func (c *Cache) Get() *Encoded {
	return c.current.Load()
}

// Age returns how old the cached frame is. ok is false while the cache is
// still empty.
func (c *Cache) Age() (age time.Duration, ok bool) {
	f := c.current.Load()
	if f == nil {
		return 0, false
	}
	return time.Since(f.CapturedAt), true
}
