package platform

import "sync"

// ETagCache retains entity tags and bodies of successful reads so repeat
// reads within a pass can be sent conditionally. A 304 reply is answered
// from the cached body. The cache lives for one pass.
type ETagCache struct {
	mu      sync.Mutex
	entries map[string]etagEntry
	hits    int
}

type etagEntry struct {
	etag string
	body []byte
}

// NewETagCache creates an empty cache.
func NewETagCache() *ETagCache {
	return &ETagCache{entries: make(map[string]etagEntry)}
}

// ETag returns the tag stored for key, or "".
func (c *ETagCache) ETag(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key].etag
}

// Put stores the tag and body of a fresh read. Reads without a tag are
// not cached.
func (c *ETagCache) Put(key, etag string, body []byte) {
	if etag == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = etagEntry{etag: etag, body: append([]byte(nil), body...)}
}

// Replay returns the cached body for a not-modified reply.
func (c *ETagCache) Replay(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.hits++
	return append([]byte(nil), e.body...), true
}

// Hits returns how many reads were answered from the cache.
func (c *ETagCache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Len returns the number of cached entries.
func (c *ETagCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
