package geocode

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// cacheKey normalizes an address so trivially different spellings of the
// same roster cell share one cache entry: Unicode NFKC, case folding and
// collapsed whitespace.
func cacheKey(address string) string {
	s := norm.NFKC.String(address)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

type cacheEntry struct {
	res     Resolution
	failure *ResolutionError
}

// memoryCache holds resolutions for the life of the process. It never
// evicts; the roster is small and every address is expected to recur.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]cacheEntry)}
}

func (c *memoryCache) get(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *memoryCache) put(key string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

func (c *memoryCache) delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

func (c *memoryCache) counts() (matched, failed int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.failure != nil {
			failed++
		} else {
			matched++
		}
	}
	return matched, failed
}
