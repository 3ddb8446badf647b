package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/graph/engine"
	"github.com/nwalker85/agentfoundry-sub000/graph/engine/inmem"
)

func TestStartRun_CarriesRequestEnvelopeIntoHandler(t *testing.T) {
	e := inmem.New()
	var gotTenant, gotActor, gotRequestID string
	require.NoError(t, e.RegisterRun(context.Background(), engine.RunDefinition{
		Name: "echo",
		Handler: func(rc *graph.RequestContext, input engine.RunInput) (graph.State, error) {
			gotTenant, gotActor, gotRequestID = rc.Tenant, rc.Actor, rc.RequestID
			return input.Initial, nil
		},
	}))

	h, err := e.StartRun(context.Background(), engine.RunStartRequest{
		ID:     "req-1",
		Run:    "echo",
		Tenant: "acme",
		Actor:  "user-1",
		Input:  engine.RunInput{Initial: graph.State{"messages": []any{"hi"}}},
	})
	require.NoError(t, err)

	state, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme", gotTenant)
	assert.Equal(t, "user-1", gotActor)
	assert.Equal(t, "req-1", gotRequestID)
	assert.Equal(t, []any{"hi"}, state["messages"])
}

func TestStartRun_UnregisteredRunFails(t *testing.T) {
	e := inmem.New()
	_, err := e.StartRun(context.Background(), engine.RunStartRequest{ID: "r1", Run: "missing"})
	assert.Error(t, err)
}

func TestCancel_StopsTheHandlersContext(t *testing.T) {
	e := inmem.New()
	started := make(chan struct{})
	require.NoError(t, e.RegisterRun(context.Background(), engine.RunDefinition{
		Name: "blocker",
		Handler: func(rc *graph.RequestContext, _ engine.RunInput) (graph.State, error) {
			close(started)
			<-rc.Ctx.Done()
			return nil, rc.Ctx.Err()
		},
	}))

	h, err := e.StartRun(context.Background(), engine.RunStartRequest{ID: "r2", Run: "blocker"})
	require.NoError(t, err)

	<-started
	require.NoError(t, h.Cancel(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.Error(t, err)
}
