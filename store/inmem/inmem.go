// Package inmem provides in-memory Draft and Version backends for
// store.Store, for tests and local development. Grounded on the teacher's
// session store's clone-on-read discipline
// (_examples/goadesign-goa-ai/runtime/agent/session/inmem) so callers can
// never mutate another caller's stored snapshot through a shared slice.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/store"
)

type draftEntry struct {
	owner    string
	snapshot []byte
	expires  time.Time
}

// DraftBackend is an in-memory store.DraftBackend.
type DraftBackend struct {
	mu      sync.Mutex
	entries map[string]draftEntry
}

// NewDraftBackend constructs an empty DraftBackend.
func NewDraftBackend() *DraftBackend {
	return &DraftBackend{entries: make(map[string]draftEntry)}
}

func ownerOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// Save stores snapshot under key with the given ttl, overwriting any prior
// value (§4.7: "writes overwrite, no history").
func (b *DraftBackend) Save(_ context.Context, key string, snapshot []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	b.entries[key] = draftEntry{owner: ownerOf(key), snapshot: cp, expires: time.Now().Add(ttl)}
	return nil
}

// Load returns the snapshot for key, or store.ErrNotFound if absent or
// expired.
func (b *DraftBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok || time.Now().After(e.expires) {
		return nil, store.ErrNotFound
	}
	cp := make([]byte, len(e.snapshot))
	copy(cp, e.snapshot)
	return cp, nil
}

// List returns the non-expired keys owned by owner.
func (b *DraftBackend) List(_ context.Context, owner string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	var keys []string
	for k, e := range b.entries {
		if e.owner == owner && now.Before(e.expires) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Sweep removes expired entries; intended to be called periodically by a
// background sweeper (§6.1's draft-sweeper).
func (b *DraftBackend) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, e := range b.entries {
		if now.After(e.expires) {
			delete(b.entries, k)
			n++
		}
	}
	return n
}

// VersionBackend is an in-memory store.VersionBackend, keyed by graph_id
// with a strictly increasing per-graph version counter.
type VersionBackend struct {
	mu       sync.Mutex
	versions map[string][]store.Version // keyed by graphID, ordered by Number ascending
}

// NewVersionBackend constructs an empty VersionBackend.
func NewVersionBackend() *VersionBackend {
	return &VersionBackend{versions: make(map[string][]store.Version)}
}

// NextVersionNumber returns len(existing)+1 for graphID.
func (b *VersionBackend) NextVersionNumber(_ context.Context, graphID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.versions[graphID]) + 1, nil
}

// FindByContentHash scans graphID's versions for a matching content hash.
func (b *VersionBackend) FindByContentHash(_ context.Context, graphID, hash string) (store.Version, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.versions[graphID] {
		if v.ContentHash == hash {
			return v, true, nil
		}
	}
	return store.Version{}, false, nil
}

// Insert appends v to graphID's version list. Callers must have already
// resolved Number via NextVersionNumber under the same logical transaction;
// a concurrent racing Insert that violates strict increase is rejected.
func (b *VersionBackend) Insert(_ context.Context, v store.Version) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.versions[v.GraphID]
	if len(existing) > 0 && existing[len(existing)-1].Number >= v.Number {
		return store.ErrVersionConflict
	}
	b.versions[v.GraphID] = append(existing, v)
	return nil
}

// Get returns the version at the given number for graphID.
func (b *VersionBackend) Get(_ context.Context, graphID string, number int) (store.Version, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.versions[graphID] {
		if v.Number == number {
			return v, nil
		}
	}
	return store.Version{}, store.ErrNotFound
}

// ListVersions returns up to limit versions for graphID, most recent first.
func (b *VersionBackend) ListVersions(_ context.Context, graphID string, limit int) ([]store.Version, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := b.versions[graphID]
	out := make([]store.Version, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
