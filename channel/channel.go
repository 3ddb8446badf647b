// Package channel implements the Channel Adapters (C9): the boundary
// between external transports (chat, voice, API) and the compiled pipeline
// (C6/C5). Every adapter shares the same Runner contract and ordering
// guarantee — outputs are delivered in executor-completion order within a
// single request_id (§4.9) — and differs only in how it encodes
// final_response and (for chat/voice) how it handles inline prosody
// markers (§9 Open Question). HTTP wiring follows the teacher's
// goahttp.Muxer + clue/debug + clue/log composition
// (_examples/goadesign-goa-ai/example/cmd/assistant/http.go), hand-wired
// here since no DSL-driven codegen is in scope.
package channel

import (
	"context"
	"sort"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

// Runner executes the compiled pipeline graph for one request. Adapters
// depend only on this narrow seam, not on graph/pipeline internals.
type Runner interface {
	Run(rc *graph.RequestContext, initial graph.State) (graph.State, error)
}

// CompiledRunner adapts a *graph.Compiled into a Runner.
type CompiledRunner struct {
	Compiled *graph.Compiled
	Options  graph.Options
}

// Run executes the compiled graph with rc and initial.
func (r CompiledRunner) Run(rc *graph.RequestContext, initial graph.State) (graph.State, error) {
	return graph.Execute(rc, r.Compiled, initial, r.Options)
}

// Request is the channel-agnostic shape every adapter reduces its
// transport-specific request into before invoking a Runner.
type Request struct {
	RequestID string
	Tenant    string
	Actor     string
	SessionID string
	Deadline  time.Time
	Input     graph.State // adapter-specific: {"messages": [...]} for chat/voice, {"input_json": ...} for api
}

// NewRequestContext builds the *graph.RequestContext a Runner expects from
// a channel Request.
func NewRequestContext(ctx context.Context, req Request) *graph.RequestContext {
	rc := &graph.RequestContext{
		Ctx:       ctx,
		RequestID: req.RequestID,
		Tenant:    req.Tenant,
		Actor:     req.Actor,
		Instance:  req.SessionID,
	}
	if !req.Deadline.IsZero() {
		rc = rc.WithDeadline(req.Deadline)
	}
	return rc
}

// FinalResponse extracts the pipeline's final_response field, or an error
// payload if the run failed (§7 "User-visible behaviour").
func FinalResponse(state graph.State, runErr error, requestID string) map[string]any {
	if runErr != nil {
		return apperr.Render(runErr, requestID)
	}
	final, _ := state["final_response"].(map[string]any)
	if final == nil {
		final = map[string]any{}
	}
	return final
}

// StreamEvent is one incremental event emitted to a streaming chat/voice
// caller, tied to the executor's trace (§6.1: node_entered, tool_invoked,
// tool_returned, final).
type StreamEvent struct {
	RequestID string
	Kind      string // "node_entered" | "final"
	NodeID    string
	Payload   any
}

// TraceStreamer is a graph.Checkpointer that re-emits each newly appended
// trace.TraceEvent as a StreamEvent on Events, in completion order, giving
// streaming callers the §4.9 ordering guarantee without changing the
// executor itself. Save is called by graph.Execute after every tick
// (§4.5); diffing against the last-seen trace length turns that
// full-state snapshot into an incremental event feed.
type TraceStreamer struct {
	Events chan<- StreamEvent
	seen   int
}

// Save implements graph.Checkpointer. The Load half of the interface is
// irrelevant to streaming (no resume support here) and always reports not
// found.
func (s *TraceStreamer) Save(_ context.Context, requestID string, nodeID string, state graph.State) error {
	trace, _ := state["trace"].([]any)
	for _, ev := range trace[s.seen:] {
		te, ok := ev.(graph.TraceEvent)
		if !ok {
			continue
		}
		s.Events <- StreamEvent{RequestID: requestID, Kind: "node_entered", NodeID: te.NodeID, Payload: te}
	}
	s.seen = len(trace)
	return nil
}

// Load implements graph.Checkpointer; streaming never resumes.
func (s *TraceStreamer) Load(_ context.Context, _ string) (string, graph.State, bool, error) {
	return "", nil, false, nil
}

// SortedKeys is a small helper shared by adapters that render
// final_response-derived maps (e.g. artifacts) deterministically.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
