package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/pipeline"
)

func handlers(governanceViolates bool, workerIDs []string) pipeline.Handlers {
	return pipeline.Handlers{
		IOIn: func(_ *graph.RequestContext, s graph.State) (graph.State, string, error) {
			return graph.State{"messages": []any{"hi"}}, "", nil
		},
		Governance: func(_ *graph.RequestContext, s graph.State) (graph.State, string, error) {
			if governanceViolates {
				return pipeline.GovernanceDenied("")
			}
			return pipeline.GovernanceAllowed()
		},
		Context: func(_ *graph.RequestContext, s graph.State) (graph.State, string, error) {
			return graph.State{"context": map[string]any{"history": "none"}}, "", nil
		},
		Supervisor: func(_ *graph.RequestContext, s graph.State) ([]string, error) {
			if len(workerIDs) == 0 {
				return []string{""}, nil
			}
			return workerIDs, nil
		},
		Coherence: pipeline.DefaultCoherence(workerIDs),
		Observability: func(_ *graph.RequestContext, s graph.State) (graph.State, string, error) {
			return graph.State{"trace": []any{"observed"}}, "", nil
		},
	}
}

func workerSpecs(ids []string, fail map[string]bool) []pipeline.WorkerSpec {
	specs := make([]pipeline.WorkerSpec, 0, len(ids))
	for _, id := range ids {
		id := id
		specs = append(specs, pipeline.WorkerSpec{
			ID: id,
			Handler: func(_ *graph.RequestContext, s graph.State) (graph.State, string, error) {
				if fail[id] {
					return graph.State{"worker_responses": map[string]any{id: pipeline.WorkerResult{Error: "boom"}}}, "", nil
				}
				return graph.State{"worker_responses": map[string]any{id: pipeline.WorkerResult{Value: "ok-" + id}}}, "", nil
			},
		})
	}
	return specs
}

func TestBuild_GovernanceViolationShortCircuits(t *testing.T) {
	h := handlers(true, nil)
	compiled, err := pipeline.Build(h, nil, nil)
	require.NoError(t, err)

	out, err := graph.Execute(&graph.RequestContext{Ctx: context.Background(), RequestID: "r1"}, compiled, graph.State{}, graph.Options{})
	require.NoError(t, err)
	final, ok := out["final_response"].(map[string]any)
	require.True(t, ok, "governance short-circuit must still produce a final_response")
	assert.Equal(t, "policy_violation", final["error_kind"])
	assert.Equal(t, pipeline.PolicyViolationMessage, final["message"])
}

func TestBuild_EmptyWorkerSetRoutesToCoherence(t *testing.T) {
	h := handlers(false, nil)
	compiled, err := pipeline.Build(h, nil, nil)
	require.NoError(t, err)

	out, err := graph.Execute(&graph.RequestContext{Ctx: context.Background(), RequestID: "r2"}, compiled, graph.State{}, graph.Options{})
	require.NoError(t, err)
	final, ok := out["final_response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, final["succeeded_workers"])
}

func TestBuild_WorkerQuorumFailureWhenAllWorkersFail(t *testing.T) {
	ids := []string{"a", "b"}
	h := handlers(false, ids)
	compiled, err := pipeline.Build(h, workerSpecs(ids, map[string]bool{"a": true, "b": true}), nil)
	require.NoError(t, err)

	_, err = graph.Execute(&graph.RequestContext{Ctx: context.Background(), RequestID: "r3"}, compiled, graph.State{}, graph.Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindWorkerQuorumFailure, apperr.KindOf(err))
}

func TestBuild_PartialWorkerFailureStillProducesResponse(t *testing.T) {
	ids := []string{"a", "b"}
	h := handlers(false, ids)
	compiled, err := pipeline.Build(h, workerSpecs(ids, map[string]bool{"a": true, "b": false}), nil)
	require.NoError(t, err)

	out, err := graph.Execute(&graph.RequestContext{Ctx: context.Background(), RequestID: "r4"}, compiled, graph.State{}, graph.Options{})
	require.NoError(t, err)
	final, ok := out["final_response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, final["succeeded_workers"])
	assert.Equal(t, "ok-b", final["value"])
}
