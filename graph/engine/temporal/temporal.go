// Package temporal adapts engine.Engine onto the Temporal SDK, giving runs
// durability across process restarts. Graph node handlers perform arbitrary
// side effects (tool calls, secret reads) and are therefore not
// replay-safe Temporal workflow code; instead of forcing node handlers
// into deterministic workflow functions, this adapter runs the entire
// graph.Execute call inside a single Temporal Activity per run. There is no
// node-granularity resume: a retried activity re-runs the graph from its
// entry node. This trades fine-grained
// Temporal visibility for freedom to keep node handlers as ordinary Go
// functions, matching how the rest of this runtime is built.
package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/graph/engine"
)

const workflowName = "agentfoundry.graph.run"
const activityName = "agentfoundry.graph.run.activity"

type eng struct {
	client    client.Client
	worker    worker.Worker
	taskQueue string
	runs      map[string]engine.RunDefinition
}

// New constructs a Temporal-backed engine.Engine bound to taskQueue. The
// worker w only begins polling once the caller calls w.Start.
func New(c client.Client, w worker.Worker, taskQueue string) engine.Engine {
	e := &eng{client: c, worker: w, taskQueue: taskQueue, runs: make(map[string]engine.RunDefinition)}
	w.RegisterWorkflowWithOptions(e.runWorkflow, workflow.RegisterOptions{Name: workflowName})
	w.RegisterActivityWithOptions(e.runActivity, activity.RegisterOptions{Name: activityName})
	return e
}

func (e *eng) RegisterRun(_ context.Context, def engine.RunDefinition) error {
	if def.Handler == nil || def.Name == "" {
		return fmt.Errorf("temporal engine: invalid run definition")
	}
	e.runs[def.Name] = def
	return nil
}

func (e *eng) StartRun(ctx context.Context, req engine.RunStartRequest) (engine.RunHandle, error) {
	if _, ok := e.runs[req.Run]; !ok {
		return nil, fmt.Errorf("temporal engine: run %q not registered", req.Run)
	}
	opts := client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: e.taskQueue,
	}
	if req.Timeout > 0 {
		opts.WorkflowExecutionTimeout = req.Timeout
	}
	run, err := e.client.ExecuteWorkflow(ctx, opts, workflowName, workflowArgs{
		RunName:  req.Run,
		Input:    req.Input,
		Tenant:   req.Tenant,
		Actor:    req.Actor,
		Domain:   req.Domain,
		Instance: req.Instance,
		Channel:  req.Channel,
		Deadline: req.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal engine: start workflow: %w", err)
	}
	return &handle{client: e.client, run: run}, nil
}

type workflowArgs struct {
	RunName  string
	Input    engine.RunInput
	Tenant   string
	Actor    string
	Domain   string
	Instance string
	Channel  string
	Deadline time.Time
}

// runWorkflow is the Temporal workflow function: it schedules a single
// activity that performs the (non-deterministic) graph.Execute call.
func (e *eng) runWorkflow(ctx workflow.Context, args workflowArgs) (graph.State, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    200 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var out graph.State
	err := workflow.ExecuteActivity(ctx, activityName, args).Get(ctx, &out)
	return out, err
}

// runActivity performs the actual (side-effecting) graph execution by
// delegating to the registered RunFunc for args.RunName.
func (e *eng) runActivity(ctx context.Context, args workflowArgs) (graph.State, error) {
	def, ok := e.runs[args.RunName]
	if !ok {
		return nil, fmt.Errorf("temporal engine: run %q not registered on worker", args.RunName)
	}
	info := activity.GetInfo(ctx)
	rc := &graph.RequestContext{
		Ctx:       ctx,
		RequestID: info.WorkflowExecution.ID,
		Tenant:    args.Tenant,
		Domain:    args.Domain,
		Instance:  args.Instance,
		Actor:     args.Actor,
		Channel:   args.Channel,
		Deadline:  args.Deadline,
	}
	return def.Handler(rc, args.Input)
}

type handle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *handle) Wait(ctx context.Context) (graph.State, error) {
	var out graph.State
	err := h.run.Get(ctx, &out)
	return out, err
}

func (h *handle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}
