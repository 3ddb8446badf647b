package api_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/channel/api"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

type stubRunner struct {
	out graph.State
	err error
}

func (r stubRunner) Run(_ *graph.RequestContext, _ graph.State) (graph.State, error) {
	return r.out, r.err
}

func TestHandle_ReturnsFinalResponseVerbatimAsOutputJSON(t *testing.T) {
	runner := stubRunner{out: graph.State{
		"final_response": map[string]any{"value": map[string]any{"id": "x"}, "succeeded_workers": 1},
	}}
	a := &api.Adapter{Runner: runner, NewReqID: func() string { return "req-1" }}

	resp, err := a.Handle(context.Background(), api.APIRequest{
		Tenant: "t1", Actor: "u1", InputJSON: json.RawMessage(`{"epic":"E1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, 1, resp.OutputJSON["succeeded_workers"])
}

func TestHandle_RejectsMalformedInputJSON(t *testing.T) {
	a := &api.Adapter{Runner: stubRunner{}, NewReqID: func() string { return "req-2" }}
	_, err := a.Handle(context.Background(), api.APIRequest{
		Tenant: "t1", Actor: "u1", InputJSON: json.RawMessage(`{not json`),
	})
	assert.Error(t, err)
}
