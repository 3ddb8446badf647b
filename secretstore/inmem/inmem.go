// Package inmem provides in-memory Backend and Cache implementations of the
// secret store, for tests and local development. Grounded on the teacher's
// in-memory session store clone-on-read discipline
// (_examples/goadesign-goa-ai/runtime/agent/session/inmem).
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/secretstore"
)

// Backend is an in-memory secretstore.Backend.
type Backend struct {
	mu      sync.RWMutex
	values  map[string]string
	rotated map[string]time.Time
}

// New returns an empty in-memory Backend.
func New() *Backend {
	return &Backend{values: make(map[string]string), rotated: make(map[string]time.Time)}
}

func (b *Backend) GetValue(_ context.Context, path secretstore.Path) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[path.String()]
	if !ok {
		return "", secretstore.ErrNotFound
	}
	return v, nil
}

func (b *Backend) PutValue(_ context.Context, path secretstore.Path, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[path.String()] = value
	b.rotated[path.String()] = time.Now().UTC()
	return nil
}

func (b *Backend) Describe(_ context.Context, path secretstore.Path) (secretstore.Status, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, configured := b.values[path.String()]
	var lastRotated string
	if t, ok := b.rotated[path.String()]; ok {
		lastRotated = t.Format(time.RFC3339)
	}
	return secretstore.Status{Configured: configured, LastRotated: lastRotated}, nil
}

// Cache is an in-memory TTL cache for secretstore.Client, mirroring the
// Redis-backed production cache's contract for tests that should not depend
// on a running Redis instance.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewCache returns an in-memory Cache with the given TTL (defaults to 30s).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *Cache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}
