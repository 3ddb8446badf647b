package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/graph/engine"
)

const runDefinitionName = "agentfoundry.pipeline"

// engineRunner adapts an engine.Engine into a channel.Runner, so every
// channel adapter's request goes through the durable-execution seam (§4.5,
// §9) rather than calling graph.Execute directly — the same compiled
// pipeline runs identically whether the engine is the in-memory adapter
// (dev) or the Temporal adapter (production durability).
type engineRunner struct {
	eng      engine.Engine
	compiled *graph.Compiled
	timeout  time.Duration
}

func newEngineRunner(eng engine.Engine, compiled *graph.Compiled, timeout time.Duration) (*engineRunner, error) {
	if err := eng.RegisterRun(context.Background(), engine.RunDefinition{
		Name: runDefinitionName,
		Handler: func(rc *graph.RequestContext, input engine.RunInput) (graph.State, error) {
			return graph.Execute(rc, compiled, input.Initial, graph.Options{})
		},
	}); err != nil {
		return nil, fmt.Errorf("cmd/runtime: register run definition: %w", err)
	}
	return &engineRunner{eng: eng, compiled: compiled, timeout: timeout}, nil
}

// Run implements channel.Runner.
func (r *engineRunner) Run(rc *graph.RequestContext, initial graph.State) (graph.State, error) {
	handle, err := r.eng.StartRun(rc.Ctx, engine.RunStartRequest{
		ID:       rc.RequestID,
		Run:      runDefinitionName,
		Input:    engine.RunInput{Compiled: r.compiled, Initial: initial},
		Timeout:  r.timeout,
		Tenant:   rc.Tenant,
		Actor:    rc.Actor,
		Domain:   rc.Domain,
		Instance: rc.Instance,
		Channel:  rc.Channel,
		Deadline: rc.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("cmd/runtime: start run: %w", err)
	}
	return handle.Wait(rc.Ctx)
}
