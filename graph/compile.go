package graph

import (
	"fmt"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
)

// Compiled is the frozen, arena-indexed form of a graph, safe to share
// across concurrent executions (§3.3).
type Compiled struct {
	nodes       []Node
	edgesBySrc  map[NodeRef][]Edge
	fields      map[string]MergePolicy
	entry       NodeRef
	unreachable []string // warnings only, per check 4
}

// Warnings returns node IDs the static reachability analysis could not
// reach from entry (§4.5 check 4: "warnings only for unreachable nodes").
func (c *Compiled) Warnings() []string { return c.unreachable }

// Compile performs the compile-time checks from §4.5 (entry uniqueness,
// edge validity, merge-policy declarations, predicate/handler presence, and
// terminal reachability from entry) and freezes b into a Compiled graph. It
// never mutates b.
func Compile(b *Builder) (*Compiled, error) {
	if !b.hasEntry {
		return nil, apperr.New(apperr.KindConfiguration, "", "graph: exactly one entry node is required, found none")
	}
	entryCount := 0
	for _, n := range b.nodes {
		if n.Kind == KindEntry {
			entryCount++
		}
	}
	if entryCount != 1 {
		return nil, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("graph: exactly one entry node is required, found %d", entryCount))
	}

	nodeCount := NodeRef(len(b.nodes))
	for _, e := range b.edges {
		if e.Source < 0 || e.Source >= nodeCount {
			return nil, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("graph: edge references unknown source node ref %d", e.Source))
		}
		if e.Target < 0 || e.Target >= nodeCount {
			return nil, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("graph: edge references unknown target node ref %d", e.Target))
		}
	}

	for _, n := range b.nodes {
		for _, w := range n.Writes {
			if _, ok := b.fields[w]; !ok {
				return nil, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("graph: node %q writes field %q with no declared merge policy", n.ID, w))
			}
		}
		if n.Kind == KindDecision && n.Predicate == nil {
			return nil, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("graph: decision node %q has no predicate", n.ID))
		}
		if n.Handler == nil && n.Kind != KindTerminal && n.Kind != KindDecision {
			return nil, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("graph: node %q has no handler", n.ID))
		}
	}

	edgesBySrc := make(map[NodeRef][]Edge)
	for _, e := range b.edges {
		edgesBySrc[e.Source] = append(edgesBySrc[e.Source], e)
	}

	reachable := reachabilityFrom(b.entry, edgesBySrc)
	var unreachable []string
	reachableTerminals := 0
	for i, n := range b.nodes {
		if !reachable[NodeRef(i)] {
			unreachable = append(unreachable, n.ID)
			continue
		}
		if n.Kind == KindTerminal {
			reachableTerminals++
		}
	}
	if reachableTerminals == 0 {
		return nil, apperr.New(apperr.KindConfiguration, "", "graph: no terminal node is reachable from entry")
	}

	fields := make(map[string]MergePolicy, len(b.fields))
	for k, v := range b.fields {
		fields[k] = v
	}
	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)

	return &Compiled{
		nodes:       nodes,
		edgesBySrc:  edgesBySrc,
		fields:      fields,
		entry:       b.entry,
		unreachable: unreachable,
	}, nil
}

func reachabilityFrom(entry NodeRef, edgesBySrc map[NodeRef][]Edge) map[NodeRef]bool {
	seen := map[NodeRef]bool{entry: true}
	stack := []NodeRef{entry}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range edgesBySrc[cur] {
			if !seen[e.Target] {
				seen[e.Target] = true
				stack = append(stack, e.Target)
			}
		}
	}
	return seen
}
