// Package secretstore implements the Secret Store Client (C2): scoped
// retrieval of secret values by (tenant, optional domain, name), with a
// blind-write invariant enforced at the API surface (no externally-reachable
// path can ever call Get; only Status is exposed to UI-facing callers).
package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
)

// ErrNotFound is returned when no secret exists at the given path. Per §4.2
// this is fatal to the requesting node (not retriable).
var ErrNotFound = errors.New("secretstore: not found")

// Path is the deterministic secret location: env/tenant[/domain]/name.
type Path struct {
	Env    string
	Tenant string
	Domain string // optional
	Name   string
}

// String renders the canonical path used as the backend key and cache key.
func (p Path) String() string {
	if p.Domain == "" {
		return fmt.Sprintf("%s/%s/%s", p.Env, p.Tenant, p.Name)
	}
	return fmt.Sprintf("%s/%s/%s/%s", p.Env, p.Tenant, p.Domain, p.Name)
}

// Status is the metadata-only view exposed to externally-reachable callers
// (§4.2: "Any path reachable from an external client must not expose get").
type Status struct {
	Configured  bool
	LastRotated string // RFC3339, empty if never rotated
}

// Backend is the remote secret-store transport. Implementations talk to the
// collaborator secret-store service (§6.2) resolved via the Service Registry.
type Backend interface {
	GetValue(ctx context.Context, path Path) (string, error)
	PutValue(ctx context.Context, path Path, value string) error
	Describe(ctx context.Context, path Path) (Status, error)
}

// Checker authorizes writes: every Put must be preceded by a successful
// check with relation can_update (§4.2, §8.3).
type Checker interface {
	Check(ctx context.Context, actor, relation string, objectType, objectID string) (bool, error)
}

// Auditor records secret access metadata (never values) per §4.10.
type Auditor interface {
	Record(ctx context.Context, action, outcome string, metadata map[string]any)
}

// Client is the internal-only secret client used by tool/pipeline nodes.
// Get is never exposed on any externally-reachable interface; callers that
// need an external-facing surface must use Status instead.
type Client struct {
	backend Backend
	cache   Cache
	authz   Checker
	audit   Auditor
}

// Cache provides a read-through cache for Get results, bounding staleness
// (§SPEC_FULL 4.2: default TTL 30s) versus the blast radius of a compromised
// cache layer. Implementations must never persist values beyond TTL.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// New constructs a secret store Client. cache may be nil to disable caching.
func New(backend Backend, cache Cache, authz Checker, audit Auditor) *Client {
	return &Client{backend: backend, cache: cache, authz: authz, audit: audit}
}

// Get retrieves a secret value. Callers MUST have already performed an
// authorization check with relation can_read on the secret object (§8.1
// invariant); Get does not itself call the authorization oracle, because the
// check's object identity (a secret object id) is a UI/catalog concept the
// secret store does not own. Get is internal-only: no externally reachable
// handler may call it.
func (c *Client) Get(ctx context.Context, path Path) (string, error) {
	key := path.String()
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok {
			return v, nil
		}
	}
	v, err := c.backend.GetValue(ctx, path)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, v)
	}
	return v, nil
}

// Put writes a secret value. It is authorized via the Checker with relation
// can_update before the backend is ever called (§4.3, §8.3): a denied check
// never reaches the backend and is audited as `action=secret.put,
// outcome=denied` without a value ever crossing the wire.
func (c *Client) Put(ctx context.Context, actor string, path Path, value string) error {
	allowed, err := c.authz.Check(ctx, actor, "can_update", "secret", path.String())
	if err != nil {
		c.record(ctx, "secret.put", "error", path, nil)
		return fmt.Errorf("secretstore: authorization check failed: %w", err)
	}
	if !allowed {
		c.record(ctx, "secret.put", "denied", path, nil)
		return apperr.New(apperr.KindUnauthorized, "", "actor is not authorized to update this secret")
	}
	if err := c.backend.PutValue(ctx, path, value); err != nil {
		c.record(ctx, "secret.put", "error", path, nil)
		return err
	}
	if c.cache != nil {
		c.cache.Set(ctx, path.String(), value)
	}
	c.record(ctx, "secret.put", "ok", path, nil)
	return nil
}

// Status returns metadata only; it is the only secret-store operation safe
// to expose to externally-reachable (UI) callers (§4.2).
func (c *Client) Status(ctx context.Context, path Path) (Status, error) {
	return c.backend.Describe(ctx, path)
}

func (c *Client) record(ctx context.Context, action, outcome string, path Path, extra map[string]any) {
	if c.audit == nil {
		return
	}
	meta := map[string]any{"path": path.String()}
	for k, v := range extra {
		meta[k] = v
	}
	c.audit.Record(ctx, action, outcome, meta)
}
