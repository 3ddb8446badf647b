package pipeline

import (
	"sort"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

// WorkerResult is the per-worker entry under state["worker_responses"]
// (§4.6). A non-empty Error marks the worker as failed (fatal or timeout);
// coherence proceeds with the remaining workers' outputs.
type WorkerResult struct {
	Value any
	Error string
}

// DefaultCoherence implements §4.6's coherence stage: merge worker
// responses into a single final_response, last-writer-wins on scalar
// fields and union on list fields, raising WorkerQuorumFailure when the
// supervisor required at least one worker and all of them failed.
// requiredWorkers is the set the supervisor activated for this request;
// when empty, quorum is not enforced.
func DefaultCoherence(requiredWorkers []string) graph.Handler {
	return func(rc *graph.RequestContext, state graph.State) (graph.State, string, error) {
		responses, _ := state["worker_responses"].(map[string]any)

		succeeded := 0
		var scalarWinner any
		var scalarWinnerID string
		var unioned []any
		order := make([]string, 0, len(responses))
		for id := range responses {
			order = append(order, id)
		}
		sort.Strings(order)

		for _, id := range order {
			raw := responses[id]
			wr, ok := raw.(WorkerResult)
			if !ok {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if errMsg, _ := m["error"].(string); errMsg != "" {
					wr = WorkerResult{Error: errMsg}
				} else {
					wr = WorkerResult{Value: m["value"]}
				}
			}
			if wr.Error != "" {
				continue
			}
			succeeded++
			switch v := wr.Value.(type) {
			case []any:
				unioned = append(unioned, v...)
			default:
				// Last-writer-wins by iteration order (deterministic: sorted ids).
				scalarWinner = v
				scalarWinnerID = id
			}
		}

		if len(requiredWorkers) > 0 && succeeded == 0 {
			return nil, "", apperr.New(apperr.KindWorkerQuorumFailure, rc.RequestID, "all activated workers failed or timed out")
		}

		final := map[string]any{"succeeded_workers": succeeded}
		if scalarWinner != nil {
			final["value"] = scalarWinner
			final["winning_worker"] = scalarWinnerID
		}
		if len(unioned) > 0 {
			final["items"] = unioned
		}
		return graph.State{"final_response": final}, "", nil
	}
}
