// Package listcache implements the per-user result cache used to paginate
// lists fetched from the upstream panels and to resolve callback actions
// against previously fetched items.
//
// A Cache holds, per user, the ordered sequence of items last fetched for
// one result-set kind (products, servers, tickets — one Cache instance per
// kind). Entries are replaced wholesale on refresh, never partially updated,
// and are never validated against upstream staleness: a callback that
// references an id missing from the cached sequence is a graceful miss, not
// an error. All state lives in process memory and is lost on restart.
package listcache

import (
	"strings"
	"sync"
)

// Cache is a per-user cache of one result-set kind. The id extractor maps an
// item to its canonical string identifier; Find normalizes both sides, so
// ids that arrive as text from button callbacks match items whose upstream
// id was numeric. Safe for concurrent use.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[int64][]T
	id    func(T) string
}

// New constructs a Cache keyed by the given id extractor.
func New[T any](id func(T) string) *Cache[T] {
	return &Cache[T]{
		items: make(map[int64][]T),
		id:    id,
	}
}

// Store replaces the user's cached sequence wholesale.
func (c *Cache[T]) Store(userID int64, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[userID] = items
}

// Items returns the user's full cached sequence (nil if nothing cached).
func (c *Cache[T]) Items(userID int64) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[userID]
}

// Len returns the number of cached items for the user.
func (c *Cache[T]) Len(userID int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items[userID])
}

// Page returns the 0-based page of the user's cached sequence along with the
// total page count. totalPages is never below 1, even for an empty cache, so
// "page 1/1" renders sensibly. Pages beyond the available items yield an
// empty slice rather than an error.
func (c *Cache[T]) Page(userID int64, page, pageSize int) ([]T, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items := c.items[userID]
	total := TotalPages(len(items), pageSize)
	if page < 0 || pageSize <= 0 {
		return []T{}, total
	}
	start := page * pageSize
	if start >= len(items) {
		return []T{}, total
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

// Find looks up a cached item by id using string-normalized equality.
// It reports false when nothing is cached or the id is unknown.
func (c *Cache[T]) Find(userID int64, id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	want := strings.TrimSpace(id)
	for _, it := range c.items[userID] {
		if strings.TrimSpace(c.id(it)) == want {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Clear drops the user's cached sequence.
func (c *Cache[T]) Clear(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
}

// TotalPages computes max(1, ceil(n / pageSize)). A non-positive pageSize
// yields 1.
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}
