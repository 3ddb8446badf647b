package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/channel"
	"github.com/nwalker85/agentfoundry-sub000/channel/chat"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

type stubRunner struct {
	out graph.State
	err error
}

func (r stubRunner) Run(_ *graph.RequestContext, _ graph.State) (graph.State, error) {
	return r.out, r.err
}

func TestStripMarkers_RemovesInlineProsodyMarkers(t *testing.T) {
	in := "Hello [[pause]] world [[emphasis:there]]!"
	assert.Equal(t, "Hello  world !", chat.StripMarkers(in))
}

func TestStripMarkers_NoMarkersIsUnchanged(t *testing.T) {
	assert.Equal(t, "plain text", chat.StripMarkers("plain text"))
}

func TestHandle_StripsMarkersFromFinalResponse(t *testing.T) {
	runner := stubRunner{out: graph.State{
		"final_response": map[string]any{"value": "answer [[pause]] here"},
	}}
	a := &chat.Adapter{Runner: runner, NewReqID: func() string { return "req-1" }}

	resp, err := a.Handle(context.Background(), chat.ChatRequest{Tenant: "t1", Actor: "u1", InputText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "answer  here", resp.OutputMarkdown)
}

func TestHandle_RendersErrorOnRunFailure(t *testing.T) {
	runner := stubRunner{err: assertErr{}}
	a := &chat.Adapter{Runner: runner, NewReqID: func() string { return "req-2" }}

	_, err := a.Handle(context.Background(), chat.ChatRequest{Tenant: "t1", Actor: "u1", InputText: "hi"})
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestTraceStreamer_EmitsOnlyNewEntriesPerSave(t *testing.T) {
	events := make(chan channel.StreamEvent, 16)
	s := &channel.TraceStreamer{Events: events}

	require.NoError(t, s.Save(context.Background(), "r1", "n1", graph.State{
		"trace": []any{graph.TraceEvent{NodeID: "io_in"}},
	}))
	require.NoError(t, s.Save(context.Background(), "r1", "n2", graph.State{
		"trace": []any{graph.TraceEvent{NodeID: "io_in"}, graph.TraceEvent{NodeID: "governance"}},
	}))
	close(events)

	var got []string
	for ev := range events {
		got = append(got, ev.NodeID)
	}
	assert.Equal(t, []string{"io_in", "governance"}, got)
}
