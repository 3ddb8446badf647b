// Package authz implements the Authorization Oracle (C3): a
// relationship-based "may actor A perform relation R on object O?" check
// used by every protected operation in the runtime (tool-kind node
// execution, C2 writes, C7 commits). Grounded on the teacher's TTL-cache
// shape (_examples/goadesign-goa-ai/runtime/registry/cache.go) for the
// ≤60s result cache required by §4.3.
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
)

// ObjectType enumerates the typed objects the oracle reasons about.
type ObjectType string

const (
	ObjectOrganization ObjectType = "organization"
	ObjectDomain       ObjectType = "domain"
	ObjectAgent        ObjectType = "agent"
	ObjectSecret       ObjectType = "secret"
	ObjectSession      ObjectType = "session"
)

// Relation enumerates direct and computed relations.
type Relation string

const (
	RelationOwner       Relation = "owner"
	RelationAdmin       Relation = "admin"
	RelationViewer      Relation = "viewer"
	RelationExecutor    Relation = "executor"
	RelationCanExecute  Relation = "can_execute"
	RelationCanUpdate   Relation = "can_update"
	RelationCanRead     Relation = "can_read"
)

// Object identifies a typed, tenant-scoped resource.
type Object struct {
	Type ObjectType
	ID   string
}

func (o Object) key() string { return string(o.Type) + ":" + o.ID }

// Backend is the remote relationship-tuple service (§6.2): the runtime only
// ever calls Check and ListObjects, never tuple writes.
type Backend interface {
	Check(ctx context.Context, actor string, relation Relation, object Object) (bool, error)
	ListObjects(ctx context.Context, actor string, relation Relation, objType ObjectType) ([]Object, error)
}

// Cache caches Check results with a bounded TTL (§4.3: "Optionally caches
// results with TTL ≤ 60s; cache key includes (actor, relation, object)").
type Cache interface {
	Get(actor string, relation Relation, object Object) (bool, bool)
	Set(actor string, relation Relation, object Object, allowed bool)
}

// MaxCacheTTL is the hard ceiling on cache freshness mandated by §4.3.
const MaxCacheTTL = 60 * time.Second

// Client is the runtime-facing authorization oracle client.
type Client struct {
	backend Backend
	cache   Cache
}

// New constructs a Client. cache may be nil to disable caching.
func New(backend Backend, cache Cache) *Client {
	return &Client{backend: backend, cache: cache}
}

// Check answers "may actor perform relation on object?". A denial is
// reported as (false, nil); use Require to turn a denial into an
// apperr.KindUnauthorized error.
func (c *Client) Check(ctx context.Context, actor string, relation Relation, object Object) (bool, error) {
	if c.cache != nil {
		if allowed, ok := c.cache.Get(actor, relation, object); ok {
			return allowed, nil
		}
	}
	allowed, err := c.backend.Check(ctx, actor, relation, object)
	if err != nil {
		return false, fmt.Errorf("authz: check failed: %w", err)
	}
	if c.cache != nil {
		c.cache.Set(actor, relation, object, allowed)
	}
	return allowed, nil
}

// Require calls Check and converts a denial into an *apperr.Error with
// KindUnauthorized, for callers that want to fail fast (§4.3, §8.1). An
// error from Check is returned unchanged.
func (c *Client) Require(ctx context.Context, actor string, relation Relation, object Object) error {
	allowed, err := c.Check(ctx, actor, relation, object)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.New(apperr.KindUnauthorized, "", fmt.Sprintf("actor %q lacks relation %q on %s", actor, relation, object.key()))
	}
	return nil
}

// ListObjects supports UI filtering only; the runtime's request path relies
// solely on point Check calls (§4.3).
func (c *Client) ListObjects(ctx context.Context, actor string, relation Relation, objType ObjectType) ([]Object, error) {
	return c.backend.ListObjects(ctx, actor, relation, objType)
}
