// Package pipeline builds the Agent Pipeline (C6): the fixed
// io_in -> governance -> context -> supervisor -> worker_* -> coherence ->
// observability -> io_out graph instantiated for every runtime instance,
// expressed as a graph.Builder (§4.6). Node roles are fixed; only the
// handler refs bound to each stage vary per manifest (C8).
package pipeline

import (
	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

// Stage names, fixed by §4.6's table.
const (
	StageIOIn          = "io_in"
	StageGovernance    = "governance"
	StageContext       = "context"
	StageSupervisor    = "supervisor"
	StageCoherence     = "coherence"
	StageObservability = "observability"
	StageIOOut         = "io_out"
)

// Standard state fields and their merge policies (§3.2).
var standardFields = map[string]graph.MergePolicy{
	"messages":         graph.MergeAppend,
	"worker_responses": graph.MergeMerge,
	"context":          graph.MergeMerge,
	"trace":            graph.MergeAppend,
	"final_response":   graph.MergeReplace,
}

// Handlers binds the configurable business logic for each fixed stage,
// resolved per manifest by C8. Worker handlers are supplied separately via
// WorkerSpec, since their count and ids vary per instance.
type Handlers struct {
	IOIn          graph.Handler
	Governance    graph.Handler // writes final_response and routes "violation" to short-circuit, else routes through
	Context       graph.Handler
	Supervisor    graph.DecisionFunc // returns worker ids to activate, or [""] for none
	Coherence     graph.Handler
	Observability graph.Handler
}

// io_out's channel-adapt step lives in the channel package, which reads
// state["final_response"] directly once graph.Execute returns; io_out
// itself is a terminal marker node with no handler.

// WorkerSpec declares one domain-specific worker node (§4.6 "worker_*").
// Handler may itself invoke graph.Execute on a nested sub-graph (the
// "agent-as-tool" pattern), recursing into C5.
type WorkerSpec struct {
	ID      string
	Handler graph.Handler
}

// Build assembles the fixed Agent Pipeline graph with the given stage
// handlers and worker set, additionalFields extending the standard field
// set for manifest-declared application state (§3.2 "Application graphs
// may add fields").
func Build(h Handlers, workers []WorkerSpec, additionalFields map[string]graph.MergePolicy) (*graph.Compiled, error) {
	if h.IOIn == nil || h.Governance == nil || h.Context == nil || h.Supervisor == nil || h.Coherence == nil || h.Observability == nil {
		return nil, apperr.New(apperr.KindConfiguration, "", "pipeline: all fixed-stage handlers are required")
	}

	b := graph.NewBuilder()
	for name, policy := range standardFields {
		b.AddField(name, policy)
	}
	for name, policy := range additionalFields {
		b.AddField(name, policy)
	}

	ioIn := b.AddNode(graph.Node{ID: StageIOIn, Kind: graph.KindEntry, Writes: []string{"messages"}, Handler: h.IOIn})
	governance := b.AddNode(graph.Node{ID: StageGovernance, Kind: graph.KindProcess, Writes: []string{"final_response"}, Handler: h.Governance})
	ctx := b.AddNode(graph.Node{ID: StageContext, Kind: graph.KindProcess, Writes: []string{"context"}, Handler: h.Context})
	supervisor := b.AddNode(graph.Node{ID: StageSupervisor, Kind: graph.KindDecision, Predicate: h.Supervisor})
	coherence := b.AddNode(graph.Node{ID: StageCoherence, Kind: graph.KindProcess, Writes: []string{"final_response"}, Handler: h.Coherence})
	observability := b.AddNode(graph.Node{ID: StageObservability, Kind: graph.KindProcess, Writes: []string{"trace"}, Handler: h.Observability})
	ioOut := b.AddNode(graph.Node{ID: StageIOOut, Kind: graph.KindTerminal})

	b.AddEdge(ioIn, governance)
	// Governance short-circuit: only this explicitly declared edge lets
	// governance route straight to io_out (§4.6).
	b.AddConditionalEdge(governance, ioOut, "violation")
	b.AddConditionalEdge(governance, ctx, "")
	b.AddEdge(ctx, supervisor)

	workerRefs := make(map[string]graph.NodeRef, len(workers))
	for _, w := range workers {
		ref := b.AddNode(graph.Node{ID: "worker_" + w.ID, Kind: graph.KindProcess, Writes: []string{"worker_responses"}, Handler: w.Handler})
		workerRefs[w.ID] = ref
		b.AddEdge(ref, coherence)
		b.AddConditionalEdge(supervisor, ref, w.ID)
	}
	// Empty worker set routes directly to coherence (§4.6 "If empty, routes
	// directly to coherence").
	b.AddConditionalEdge(supervisor, coherence, "")

	b.AddEdge(coherence, observability)
	b.AddEdge(observability, ioOut)

	return graph.Compile(b)
}
