// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc performs a live lookup of the current condition at a location.
type FetchFunc func(ctx context.Context, lat, lon float64) (Condition, error)

// Key identifies a cache slot. Coordinates are rounded to two decimal
// places, roughly one kilometre.
type Key struct {
	Lat float64
	Lon float64
}

// KeyFor rounds lat and lon into a cache key.
func KeyFor(lat, lon float64) Key {
	return Key{Lat: round2(lat), Lon: round2(lon)}
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%.2f,%.2f", k.Lat, k.Lon)
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // fold -0
	}
	return r
}

// Entry is a cached lookup result.
type Entry struct {
	Key       Key
	Condition Condition
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reports whether the entry is still valid at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Recorder observes cache lookups. Result is one of "hit", "miss" or "error".
type Recorder interface {
	RecordWeatherLookup(ctx context.Context, result string)
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Errors  int64 `json:"errors"`
	Entries int   `json:"entries"`
}

// Cache memoizes the last classified condition per location for a TTL.
// A failed fetch is returned to the caller and never replaced by a stale
// entry. Concurrent misses for the same key share one fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry

	group    singleflight.Group
	now      func() time.Time
	recorder Recorder

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithRecorder reports every lookup to r.
func WithRecorder(r Recorder) CacheOption {
	return func(c *Cache) { c.recorder = r }
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[Key]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached condition for (lat, lon) when it is younger
// than ttl, otherwise it calls fetch and stores a successful result.
func (c *Cache) GetOrFetch(ctx context.Context, lat, lon float64, ttl time.Duration, fetch FetchFunc) (Condition, error) {
	key := KeyFor(lat, lon)

	if cond, ok := c.lookup(key); ok {
		c.hits.Add(1)
		c.record(ctx, "hit")
		return cond, nil
	}

	// fetched is only written by this goroutine's own flight.
	fetched := false
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Another flight may have filled the slot while we waited.
		if cond, ok := c.lookup(key); ok {
			return cond, nil
		}

		fetched = true
		c.misses.Add(1)
		c.record(ctx, "miss")

		cond, err := fetch(ctx, key.Lat, key.Lon)
		if err != nil {
			c.errors.Add(1)
			c.record(ctx, "error")
			return Condition(""), err
		}

		c.mu.Lock()
		c.entries[key] = Entry{Key: key, Condition: cond, FetchedAt: c.now(), TTL: ttl}
		c.mu.Unlock()
		return cond, nil
	})
	if err != nil {
		return "", err
	}
	if !fetched {
		// Served by a flight another caller started, or by an entry
		// stored while we waited to join.
		c.hits.Add(1)
		c.record(ctx, "hit")
	}
	return v.(Condition), nil
}

func (c *Cache) lookup(key Key) (Condition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.Fresh(c.now()) {
		return "", false
	}
	return e.Condition, true
}

func (c *Cache) record(ctx context.Context, result string) {
	if c.recorder != nil {
		c.recorder.RecordWeatherLookup(ctx, result)
	}
}

// Entries returns a copy of all cached entries, including expired ones.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Stats returns the cumulative counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Entries: n,
	}
}

// Purge drops expired entries.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !e.Fresh(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
