// Package inmem provides an in-memory authz.Backend and authz.Cache for
// tests and local development. The backend implements the hierarchical
// inheritance described in SPEC_FULL §4.3 (an organization admin inherits
// management rights over the domains, agents and secrets nested under that
// organization) without needing a real relationship-tuple service.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/authz"
)

// tuple is a direct (actor, relation, object) fact.
type tuple struct {
	actor    string
	relation authz.Relation
	object   authz.Object
}

// Backend is an in-memory relationship-tuple store with a small set of
// computed relations layered over direct ones.
type Backend struct {
	mu sync.RWMutex

	// direct tuples, e.g. (u1, owner, organization:acme)
	tuples []tuple

	// parent maps a contained object to its containing object, e.g.
	// domain:billing -> organization:acme. Populated via Nest.
	parent map[string]authz.Object
}

// New returns an empty in-memory Backend.
func New() *Backend {
	return &Backend{parent: make(map[string]authz.Object)}
}

// Grant records a direct relation tuple (actor, relation, object).
func (b *Backend) Grant(actor string, relation authz.Relation, object authz.Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tuples = append(b.tuples, tuple{actor: actor, relation: relation, object: object})
}

// Nest declares that child is contained within parent (e.g. a domain within
// an organization, an agent within a domain), enabling hierarchical
// inheritance of admin rights down the containment chain.
func (b *Backend) Nest(child, parent authz.Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent[string(child.Type)+":"+child.ID] = parent
}

// Check implements authz.Backend.
func (b *Backend) Check(_ context.Context, actor string, relation authz.Relation, object authz.Object) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch relation {
	case authz.RelationCanRead:
		return b.hasAny(actor, object, authz.RelationOwner, authz.RelationAdmin, authz.RelationViewer, authz.RelationExecutor), nil
	case authz.RelationCanUpdate:
		return b.hasAny(actor, object, authz.RelationOwner, authz.RelationAdmin), nil
	case authz.RelationCanExecute:
		return b.hasAny(actor, object, authz.RelationOwner, authz.RelationAdmin, authz.RelationExecutor), nil
	default:
		return b.hasDirect(actor, relation, object), nil
	}
}

// hasAny checks direct tuples on object, then walks the containment chain
// upward checking for owner/admin at each ancestor (an org admin manages
// everything nested under the org).
func (b *Backend) hasAny(actor string, object authz.Object, relations ...authz.Relation) bool {
	for _, r := range relations {
		if b.hasDirect(actor, r, object) {
			return true
		}
	}
	cur := object
	for {
		parent, ok := b.parent[string(cur.Type)+":"+cur.ID]
		if !ok {
			return false
		}
		// Only owner/admin propagate down the hierarchy; viewer/executor do not.
		if b.hasDirect(actor, authz.RelationOwner, parent) || b.hasDirect(actor, authz.RelationAdmin, parent) {
			return true
		}
		cur = parent
	}
}

func (b *Backend) hasDirect(actor string, relation authz.Relation, object authz.Object) bool {
	for _, t := range b.tuples {
		if t.actor == actor && t.relation == relation && t.object == object {
			return true
		}
	}
	return false
}

// ListObjects implements authz.Backend.
func (b *Backend) ListObjects(_ context.Context, actor string, relation authz.Relation, objType authz.ObjectType) ([]authz.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[authz.Object]bool)
	var out []authz.Object
	for _, t := range b.tuples {
		if t.actor == actor && t.relation == relation && t.object.Type == objType && !seen[t.object] {
			seen[t.object] = true
			out = append(out, t.object)
		}
	}
	return out, nil
}

// Cache is an in-memory TTL cache mirroring authz.RedisCache's contract.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
}

type entry struct {
	allowed   bool
	expiresAt time.Time
}

// NewCache returns an in-memory Cache. ttl is clamped to (0, MaxCacheTTL],
// defaulting to MaxCacheTTL when zero or negative.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 || ttl > authz.MaxCacheTTL {
		ttl = authz.MaxCacheTTL
	}
	return &Cache{entries: make(map[string]entry), ttl: ttl}
}

func key(actor string, relation authz.Relation, object authz.Object) string {
	return actor + "|" + string(relation) + "|" + string(object.Type) + ":" + object.ID
}

// Get implements authz.Cache.
func (c *Cache) Get(actor string, relation authz.Relation, object authz.Object) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key(actor, relation, object)]
	if !ok {
		return false, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key(actor, relation, object))
		return false, false
	}
	return e.allowed, true
}

// Set implements authz.Cache.
func (c *Cache) Set(actor string, relation authz.Relation, object authz.Object, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(actor, relation, object)] = entry{allowed: allowed, expiresAt: time.Now().Add(c.ttl)}
}
