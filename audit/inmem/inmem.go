// Package inmem provides an in-memory audit.Backend for tests and local
// development, grounded on the teacher's run log store's slice-per-key
// shape (_examples/goadesign-goa-ai/runtime/agent/runlog/inmem/inmem.go).
package inmem

import (
	"context"
	"sync"

	"github.com/nwalker85/agentfoundry-sub000/audit"
)

// Backend is an in-memory audit.Backend.
type Backend struct {
	mu      sync.Mutex
	entries []audit.Entry
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{}
}

// Append stores e.
func (b *Backend) Append(_ context.Context, e audit.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	return nil
}

// Query returns entries matching f, most recent first is not guaranteed —
// entries are returned in append order, consistent with §5's
// request_id+sequence total ordering.
func (b *Backend) Query(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []audit.Entry
	for _, e := range b.entries {
		if f.Tenant != "" && e.Tenant != f.Tenant {
			continue
		}
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Timestamp.After(f.To) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
