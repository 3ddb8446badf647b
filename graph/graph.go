// Package graph implements the State-Graph Executor (C5): compiles a
// node/edge graph into an executable, drives nodes with a typed state, and
// supports conditional routing and cycles with a bounded recursion limit.
// Grounded on the teacher's Engine/WorkflowContext abstraction
// (_examples/goadesign-goa-ai/runtime/agent/engine/engine.go): nodes are
// handler functions invoked with a context, mirroring the teacher's
// WorkflowFunc/ActivityFunc split between deterministic routing and
// side-effecting work.
package graph

import (
	"fmt"
)

// Kind enumerates the node kinds recognised by the compiler (§3.3).
type Kind string

const (
	KindEntry    Kind = "entry"
	KindProcess  Kind = "process"
	KindDecision Kind = "decision"
	KindTool     Kind = "tool"
	KindTerminal Kind = "terminal"
)

// MergePolicy declares how concurrent writes to a state field are reconciled
// on re-join (§3.2).
type MergePolicy string

const (
	MergeReplace MergePolicy = "replace"
	MergeAppend  MergePolicy = "append"
	MergeMerge   MergePolicy = "merge"
)

// FieldSpec declares a state field and its merge policy.
type FieldSpec struct {
	Name   string
	Policy MergePolicy
}

// NodeRef is an arena index into a Builder's node slice, used by Edge to
// avoid holding pointers or repeating string ids (§9 arena-allocated nodes).
type NodeRef int

// Node describes one vertex of the uncompiled graph.
type Node struct {
	ID      string
	Kind    Kind
	Reads   []string
	Writes  []string
	Handler Handler
	// Predicate is required when Kind == KindDecision; it inspects State and
	// returns the edge label to follow (§4.5 execution contract, item 1).
	// A predicate may return multiple labels to fan out in parallel (§4.5
	// "parallel decision returning a set of labels").
	Predicate DecisionFunc
}

// Edge connects two nodes, optionally guarded by a label produced by the
// source decision node's Predicate. An edge with an empty Label is
// unconditional.
type Edge struct {
	Source NodeRef
	Target NodeRef
	Label  string
}

// Builder accumulates nodes, edges, and field specs before Compile freezes
// them into an arena-indexed Graph (§9 "arena-allocated nodes/edges").
type Builder struct {
	nodes  []Node
	edges  []Edge
	fields map[string]MergePolicy
	byID   map[string]NodeRef
	entry  NodeRef
	hasEntry bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{fields: make(map[string]MergePolicy), byID: make(map[string]NodeRef)}
}

// AddField declares a state field's merge policy. Calling this more than
// once for the same field with a different policy is a builder-time error
// surfaced at Compile.
func (b *Builder) AddField(name string, policy MergePolicy) *Builder {
	b.fields[name] = policy
	return b
}

// AddNode appends a node and returns its NodeRef for use in AddEdge.
func (b *Builder) AddNode(n Node) NodeRef {
	ref := NodeRef(len(b.nodes))
	b.nodes = append(b.nodes, n)
	b.byID[n.ID] = ref
	if n.Kind == KindEntry {
		b.entry = ref
		b.hasEntry = true
	}
	return ref
}

// AddEdge appends an unconditional edge from source to target.
func (b *Builder) AddEdge(source, target NodeRef) *Builder {
	b.edges = append(b.edges, Edge{Source: source, Target: target})
	return b
}

// AddConditionalEdge appends an edge followed only when the source decision
// node's Predicate returns label.
func (b *Builder) AddConditionalEdge(source, target NodeRef, label string) *Builder {
	b.edges = append(b.edges, Edge{Source: source, Target: target, Label: label})
	return b
}

// NodeByID resolves a previously added node's ref by its declared ID.
func (b *Builder) NodeByID(id string) (NodeRef, bool) {
	ref, ok := b.byID[id]
	return ref, ok
}

// Handler is invoked when the executor activates a process/tool/entry node.
// It receives the current state and a request-scoped context, and returns
// partial state updates plus an optional routing hint; it must not mutate
// state in place (§4.5 "must not mutate state in place").
type Handler func(ctx *RequestContext, state State) (updates State, routingHint string, err error)

// DecisionFunc is invoked for a decision node; it returns the set of edge
// labels to activate next. A single-label slice is an ordinary branch; a
// multi-label slice fans out in parallel (§4.5).
type DecisionFunc func(ctx *RequestContext, state State) ([]string, error)

// TraceEvent is appended to the state's `trace` field after every node
// completion (§4.5).
type TraceEvent struct {
	NodeID    string
	StartedAt int64 // unix nanos
	Duration  int64 // nanos
	Outcome   string
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%s)", n.ID, n.Kind)
}
