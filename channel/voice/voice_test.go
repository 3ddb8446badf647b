package voice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/channel/voice"
	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/toolclient"
	"github.com/nwalker85/agentfoundry-sub000/toolclient/inmem"
)

type stubServer struct {
	value string
}

func (s stubServer) Call(_ context.Context, req toolclient.Request) (toolclient.Response, error) {
	switch req.ToolName {
	case voice.TranscribeToolName:
		return toolclient.Response{Outcome: toolclient.OutcomeOK, Value: []byte(`{"text":"hello there"}`)}, nil
	case voice.SynthesizeToolName:
		return toolclient.Response{Outcome: toolclient.OutcomeOK, Value: []byte(`{"audio_ref":"blob-1","content_type":"audio/wav"}`)}, nil
	}
	return toolclient.Response{}, nil
}

type stubRunner struct{ out graph.State }

func (r stubRunner) Run(_ *graph.RequestContext, _ graph.State) (graph.State, error) {
	return r.out, nil
}

func newTools(t *testing.T) *toolclient.Client {
	t.Helper()
	reg := inmem.NewRegistry()
	reg.Register(voice.TranscribeToolName, stubServer{}, nil)
	reg.Register(voice.SynthesizeToolName, stubServer{}, nil)
	cache := inmem.NewCache()
	return toolclient.New(reg, cache, noopAuditor{})
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, string, string, map[string]any) {}

func TestHandle_TranscribesRunsAndSynthesizes(t *testing.T) {
	runner := stubRunner{out: graph.State{
		"final_response": map[string]any{"value": "the reply text"},
	}}
	a := &voice.Adapter{
		Runner:   runner,
		Tools:    newTools(t),
		NewReqID: func() string { return "req-1" },
	}

	resp, err := a.Handle(context.Background(), voice.VoiceRequest{
		Tenant: "t1", Actor: "u1", Audio: voice.AudioHandle{Ref: "in-blob", ContentType: "audio/wav"},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "the reply text", resp.OutputText)
	assert.Equal(t, "blob-1", resp.OutputAudio.Ref)
}
