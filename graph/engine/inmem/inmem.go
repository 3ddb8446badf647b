// Package inmem provides a single-process engine.Engine implementation for
// tests and local development, structurally adapted from the teacher's
// in-memory engine
// (_examples/goadesign-goa-ai/runtime/agent/engine/inmem/engine.go):
// goroutine-per-run, a done channel, and a context-cancel-based Cancel.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/graph/engine"
)

type eng struct {
	mu   sync.RWMutex
	runs map[string]engine.RunDefinition
}

// New returns a new in-memory Engine. Not durable: a process restart loses
// all in-flight runs.
func New() engine.Engine {
	return &eng{runs: make(map[string]engine.RunDefinition)}
}

func (e *eng) RegisterRun(_ context.Context, def engine.RunDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.runs[def.Name]; dup {
		return fmt.Errorf("inmem engine: run %q already registered", def.Name)
	}
	if def.Handler == nil || def.Name == "" {
		return fmt.Errorf("inmem engine: invalid run definition")
	}
	e.runs[def.Name] = def
	return nil
}

func (e *eng) StartRun(ctx context.Context, req engine.RunStartRequest) (engine.RunHandle, error) {
	e.mu.RLock()
	def, ok := e.runs[req.Run]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem engine: run %q not registered", req.Run)
	}
	if req.ID == "" {
		return nil, fmt.Errorf("inmem engine: run id is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(h.done)
		rc := &graph.RequestContext{
			Ctx:       runCtx,
			RequestID: req.ID,
			Tenant:    req.Tenant,
			Domain:    req.Domain,
			Instance:  req.Instance,
			Actor:     req.Actor,
			Channel:   req.Channel,
			Deadline:  req.Deadline,
		}
		state, err := def.Handler(rc, req.Input)
		h.mu.Lock()
		h.state, h.err = state, err
		h.mu.Unlock()
	}()

	return h, nil
}

type handle struct {
	mu     sync.Mutex
	done   chan struct{}
	cancel context.CancelFunc
	state  graph.State
	err    error
}

func (h *handle) Wait(ctx context.Context) (graph.State, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.state, h.err
	}
}

func (h *handle) Cancel(context.Context) error {
	h.cancel()
	return nil
}
