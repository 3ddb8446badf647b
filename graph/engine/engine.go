// Package engine defines a pluggable durable-execution abstraction so a
// graph.Execute run can be wrapped for checkpoint/resume across process
// restarts, independent of whether the backing durability store is
// in-memory (dev/test) or Temporal (production). Adapted from the
// teacher's Engine/WorkflowContext split
// (_examples/goadesign-goa-ai/runtime/agent/engine/engine.go): a RunFunc
// plays the role of the teacher's WorkflowFunc, and RunHandle plays the
// role of WorkflowHandle.
package engine

import (
	"context"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/graph"
)

type (
	// Engine registers a graph-execution definition and starts runs against
	// it. Implementations translate these generic types into backend-specific
	// primitives (Temporal workflows, in-process goroutines, ...).
	Engine interface {
		RegisterRun(ctx context.Context, def RunDefinition) error
		StartRun(ctx context.Context, req RunStartRequest) (RunHandle, error)
	}

	// RunDefinition binds a logical pipeline name to the RunFunc that drives
	// a graph.Compiled instance for every started run.
	RunDefinition struct {
		Name    string
		Handler RunFunc
	}

	// RunFunc is invoked by the engine when a run starts. It receives the
	// compiled graph, the initial state, and the request context, and
	// returns the final state or an error (typically by delegating to
	// graph.Execute).
	RunFunc func(rc *graph.RequestContext, input RunInput) (graph.State, error)

	// RunInput is the payload passed to a RunFunc.
	RunInput struct {
		Compiled *graph.Compiled
		Initial  graph.State
	}

	// RunStartRequest describes how to launch a run.
	RunStartRequest struct {
		// ID must be unique within the engine scope; it is the request_id
		// propagated through every sub-call (§3.1).
		ID      string
		Run     string // RunDefinition.Name to execute
		Input   RunInput
		Timeout time.Duration

		// Tenant/Actor/Domain/Instance/Channel/Deadline carry the §3.1
		// request envelope fields through to the RequestContext the
		// RunFunc receives, so a durable engine's replay/activity
		// boundary doesn't silently drop them.
		Tenant   string
		Actor    string
		Domain   string
		Instance string
		Channel  string
		Deadline time.Time
	}

	// RunHandle lets callers await or cancel a started run.
	RunHandle interface {
		Wait(ctx context.Context) (graph.State, error)
		Cancel(ctx context.Context) error
	}
)
