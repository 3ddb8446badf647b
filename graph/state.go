package graph

import (
	"context"
	"sort"
	"time"
)

// State is an immutable-by-convention mapping from field name to value
// (§3.2). Handlers receive a State and return a new State of only the
// fields they write; the executor merges updates per the field's declared
// MergePolicy and never lets a handler mutate the frontier's State in
// place.
type State map[string]any

// Clone returns a shallow copy of s, safe for a handler to use as a base
// for its own derived updates without risk of a concurrent branch observing
// partial writes (§4.5 "must not mutate state in place").
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// merge reconciles concurrent partial states into a base state, applying
// each field's declared MergePolicy. order gives the completion order of
// the partials, used for tie-breaking (§4.5: "append preserves completion
// order; merge applies writes in completion order; replace picks the later
// committed_at").
func merge(base State, partials []State, completedAt []time.Time, fields map[string]MergePolicy) State {
	out := base.Clone()
	order := make([]int, len(partials))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return completedAt[order[i]].Before(completedAt[order[j]]) })

	for _, idx := range order {
		partial := partials[idx]
		for field, value := range partial {
			policy := fields[field]
			switch policy {
			case MergeAppend:
				existing, _ := out[field].([]any)
				incoming, ok := value.([]any)
				if !ok {
					incoming = []any{value}
				}
				out[field] = append(append([]any{}, existing...), incoming...)
			case MergeMerge:
				existingMap, _ := out[field].(map[string]any)
				if existingMap == nil {
					existingMap = make(map[string]any)
				} else {
					clone := make(map[string]any, len(existingMap))
					for k, v := range existingMap {
						clone[k] = v
					}
					existingMap = clone
				}
				incoming, ok := value.(map[string]any)
				if ok {
					for k, v := range incoming {
						existingMap[k] = v
					}
				}
				out[field] = existingMap
			default: // MergeReplace and unknown fields default to last-write-wins
				out[field] = value
			}
		}
	}
	return out
}

// RequestContext carries the pipeline-neutral request envelope fields
// (§3.1) and the standard Go context through a graph execution. It is
// passed to every Handler and DecisionFunc.
type RequestContext struct {
	Ctx       context.Context
	RequestID string
	Tenant    string
	Domain    string
	Instance  string
	Actor     string
	Channel   string
	Deadline  time.Time
}

// WithDeadline derives a sub-call RequestContext whose deadline is no later
// than the parent's, enforcing §3.1's "deadline is monotonically
// tightening" invariant.
func (rc *RequestContext) WithDeadline(d time.Time) *RequestContext {
	out := *rc
	if rc.Deadline.IsZero() || d.Before(rc.Deadline) {
		out.Deadline = d
	}
	return &out
}
