package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
)

// DefaultRecursionLimit bounds the number of node activations in a single
// execution when Options.RecursionLimit is left at zero (§4.5
// "RecursionLimitExceeded").
const DefaultRecursionLimit = 256

// Checkpointer receives state snapshots keyed by request id. Execute calls
// Save once after each frontier step, under the id of the last node
// activated in that step; it never calls Load, so every execution starts
// from the entry node and a cancelled or crashed execution is not resumed.
// The store package has no implementation; channel.TraceStreamer implements
// it to relay trace events.
type Checkpointer interface {
	Save(ctx context.Context, requestID string, nodeID string, state State) error
	Load(ctx context.Context, requestID string) (nodeID string, state State, found bool, err error)
}

// Options configures a single Execute call.
type Options struct {
	// RecursionLimit caps total node activations; zero uses DefaultRecursionLimit.
	RecursionLimit int
	// Checkpointer, if set, is called once after each frontier step.
	Checkpointer Checkpointer
}

// stepResult is the outcome of activating a single node within a frontier.
type stepResult struct {
	ref      NodeRef
	node     Node
	update   State
	labels   []string
	hint     string
	err      error
	at       time.Time
	finished time.Time
}

// Execute drives compiled from its entry node until a terminal is reached,
// the recursion limit is hit, the deadline elapses, or a fatal error is
// raised (§4.5).
func Execute(rc *RequestContext, compiled *Compiled, initial State, opts Options) (State, error) {
	limit := opts.RecursionLimit
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}

	state := initial.Clone()
	frontier := []NodeRef{compiled.entry}
	activations := 0

	for len(frontier) > 0 {
		if err := checkDeadlineAndCancellation(rc); err != nil {
			return state, err
		}
		if activations+len(frontier) > limit {
			return state, apperr.New(apperr.KindRecursionLimit, rc.RequestID, "graph: recursion limit exceeded")
		}

		results := runFrontier(rc, compiled, frontier, state)
		activations += len(frontier)

		// Trace every activation, including failures, before acting on any
		// error — the trace stream must show what actually happened (§4.5
		// "{node_id, started_at, duration, outcome}").
		byCompletion := append([]stepResult(nil), results...)
		sort.SliceStable(byCompletion, func(i, j int) bool {
			return byCompletion[i].finished.Before(byCompletion[j].finished)
		})
		for _, r := range byCompletion {
			state = appendTrace(state, TraceEvent{
				NodeID:    r.node.ID,
				StartedAt: r.at.UnixNano(),
				Duration:  r.finished.Sub(r.at).Nanoseconds(),
				Outcome:   traceOutcome(r),
			})
		}

		for _, r := range results {
			if r.err != nil {
				return state, r.err
			}
		}

		partials := make([]State, 0, len(results))
		completedAt := make([]time.Time, 0, len(results))
		for _, r := range results {
			if r.update != nil {
				partials = append(partials, r.update)
				completedAt = append(completedAt, r.finished)
			}
		}
		state = merge(state, partials, completedAt, compiled.fields)

		if opts.Checkpointer != nil && len(results) > 0 {
			// Checkpoint under the last-activated node's id (§4.5).
			_ = opts.Checkpointer.Save(rc.Ctx, rc.RequestID, results[len(results)-1].node.ID, state)
		}

		next, err := nextFrontier(rc, compiled, results)
		if err != nil {
			return state, err
		}
		if next == nil {
			return state, nil // reached a terminal
		}
		frontier = next
	}
	return state, nil
}

func runFrontier(rc *RequestContext, compiled *Compiled, frontier []NodeRef, state State) []stepResult {
	results := make([]stepResult, len(frontier))
	var wg sync.WaitGroup
	for i, ref := range frontier {
		i, ref := i, ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runNode(rc, ref, compiled.nodes[ref], state)
		}()
	}
	wg.Wait()
	return results
}

func runNode(rc *RequestContext, ref NodeRef, node Node, state State) stepResult {
	at := time.Now()
	if node.Kind == KindDecision {
		labels, err := node.Predicate(rc, state)
		return stepResult{ref: ref, node: node, labels: labels, err: wrapNodeErr(node, err), at: at, finished: time.Now()}
	}
	if node.Kind == KindTerminal {
		return stepResult{ref: ref, node: node, at: at, finished: time.Now()}
	}
	update, hint, err := node.Handler(rc, state)
	return stepResult{ref: ref, node: node, update: update, hint: hint, err: wrapNodeErr(node, err), at: at, finished: time.Now()}
}

// traceOutcome reports the TraceEvent.Outcome value for a completed step
// (§4.5 trace shape {node_id, started_at, duration, outcome}).
func traceOutcome(r stepResult) string {
	if r.err != nil {
		return "error"
	}
	return "ok"
}

func wrapNodeErr(node Node, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindOf(err), "", "graph: node "+node.ID+" failed", err)
}

func appendTrace(state State, ev TraceEvent) State {
	out := state.Clone()
	existing, _ := out["trace"].([]any)
	out["trace"] = append(append([]any{}, existing...), any(ev))
	return out
}

// nextFrontier computes the set of nodes to activate next, per §4.5's
// routing rules. A nil slice with a nil error means a terminal was reached.
func nextFrontier(rc *RequestContext, compiled *Compiled, results []stepResult) ([]NodeRef, error) {
	var next []NodeRef
	sawNonTerminal := false

	for _, r := range results {
		if r.node.Kind == KindTerminal {
			continue
		}
		sawNonTerminal = true
		edges := compiled.edgesBySrc[r.ref]

		switch r.node.Kind {
		case KindDecision:
			if len(r.labels) == 0 {
				return nil, apperr.New(apperr.KindUnroutableState, rc.RequestID, "graph: decision node "+r.node.ID+" returned no labels")
			}
			for _, label := range r.labels {
				target, ok := findEdgeByLabel(edges, label)
				if !ok {
					target, ok = findEdgeByLabel(edges, "")
				}
				if !ok {
					return nil, apperr.New(apperr.KindUnroutableState, rc.RequestID, "graph: no edge for label "+label+" from node "+r.node.ID)
				}
				next = append(next, target)
			}
		default: // process, tool, entry
			// A non-empty routing hint (§4.5 Handler contract: "optional
			// routing hint") selects a labelled edge the same way a decision
			// node's label does; an unmatched hint falls back to the node's
			// unconditional edge, same as an empty hint.
			if r.hint != "" {
				if target, ok := findEdgeByLabel(edges, r.hint); ok {
					next = append(next, target)
					continue
				}
			}
			unconditional := filterUnconditional(edges)
			if len(unconditional) == 0 {
				continue // no outgoing edge; this branch terminates implicitly
			}
			if len(unconditional) > 1 {
				return nil, apperr.New(apperr.KindAmbiguousEdge, rc.RequestID, "graph: node "+r.node.ID+" has more than one unconditional outgoing edge")
			}
			next = append(next, unconditional[0].Target)
		}
	}

	if !sawNonTerminal || len(next) == 0 {
		return nil, nil
	}
	return dedupe(next), nil
}

func findEdgeByLabel(edges []Edge, label string) (NodeRef, bool) {
	for _, e := range edges {
		if e.Label == label {
			return e.Target, true
		}
	}
	return 0, false
}

func filterUnconditional(edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.Label == "" {
			out = append(out, e)
		}
	}
	return out
}

func dedupe(refs []NodeRef) []NodeRef {
	seen := make(map[NodeRef]bool, len(refs))
	out := make([]NodeRef, 0, len(refs))
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func checkDeadlineAndCancellation(rc *RequestContext) error {
	if rc.Ctx != nil {
		select {
		case <-rc.Ctx.Done():
			return apperr.Wrap(apperr.KindDeadlineExceeded, rc.RequestID, "graph: execution cancelled", rc.Ctx.Err())
		default:
		}
	}
	if !rc.Deadline.IsZero() && time.Now().After(rc.Deadline) {
		return apperr.New(apperr.KindDeadlineExceeded, rc.RequestID, "graph: deadline exceeded")
	}
	return nil
}
