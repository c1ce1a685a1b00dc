package engine

import "sync"

// threadCache maps owners to their server-side assistant threads.
type threadCache struct {
	mu      sync.RWMutex
	threads map[string]string
}

func newThreadCache() *threadCache {
	return &threadCache{threads: make(map[string]string)}
}

func (c *threadCache) get(ownerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.threads[ownerID]
	return id, ok
}

func (c *threadCache) set(ownerID, threadID string) {
	c.mu.Lock()
	c.threads[ownerID] = threadID
	c.mu.Unlock()
}

func (c *threadCache) drop(ownerID string) {
	c.mu.Lock()
	delete(c.threads, ownerID)
	c.mu.Unlock()
}
