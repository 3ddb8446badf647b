// Package inmem provides an in-memory toolclient.IdempotencyCache and a
// schema-validating toolclient.Registry, for tests and local development.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nwalker85/agentfoundry-sub000/toolclient"
)

// Cache is an in-memory IdempotencyCache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	flight  map[string]bool
}

type entry struct {
	resp      toolclient.Response
	expiresAt time.Time
}

// NewCache returns an empty in-memory Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry), flight: make(map[string]bool)}
}

func (c *Cache) Get(_ context.Context, key string) (toolclient.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return toolclient.Response{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return toolclient.Response{}, false
	}
	return e.resp, true
}

func (c *Cache) Set(_ context.Context, key string, resp toolclient.Response, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{resp: resp, expiresAt: time.Now().Add(ttl)}
}

func (c *Cache) Reserve(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight[key] {
		return false
	}
	c.flight[key] = true
	return true
}

func (c *Cache) Release(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flight, key)
}

// toolEntry binds a Server to a compiled JSON schema for its arguments.
type toolEntry struct {
	server toolclient.Server
	schema *jsonschema.Schema
}

// Registry is an in-memory tool Registry keyed by fully-qualified tool name
// (ns.op), with per-tool JSON Schema argument validation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]toolEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]toolEntry)}
}

// Register declares a tool, its server, and its argument schema (as a
// compiled *jsonschema.Schema; pass nil to skip validation).
func (r *Registry) Register(toolName string, server toolclient.Server, schema *jsonschema.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[toolName] = toolEntry{server: server, schema: schema}
}

func (r *Registry) Resolve(toolName string) (toolclient.Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[toolName]
	if !ok {
		return nil, fmt.Errorf("toolclient/inmem: unknown tool %q", toolName)
	}
	return e.server, nil
}

func (r *Registry) Validate(toolName string, arguments map[string]any) error {
	r.mu.RLock()
	e, ok := r.tools[toolName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("toolclient/inmem: unknown tool %q", toolName)
	}
	if e.schema == nil {
		return nil
	}
	return e.schema.Validate(arguments)
}
