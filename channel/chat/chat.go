// Package chat implements the chat channel adapter (C9): text input in,
// Markdown-safe output, with an optional token/event streaming variant
// tied to the executor's trace (§4.9, §6.1). HTTP wiring mirrors the
// teacher's mux/debug/log composition
// (_examples/goadesign-goa-ai/example/cmd/assistant/http.go).
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"goa.design/clue/log"
	goahttp "goa.design/goa/v3/http"

	"github.com/nwalker85/agentfoundry-sub000/channel"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

// markerPrefix/markerSuffix bound the inline prosody markers a voice-aware
// manifest may embed in final_response text (e.g. "[[pause]]",
// "[[emphasis:important]]"). Chat strips every marker before rendering;
// voice honours them (channel/voice). This marker set is this adapter
// pair's own choice (§9 Open Question: "adapters must document their own
// set").
const (
	markerPrefix = "[["
	markerSuffix = "]]"
)

// StripMarkers removes every "[[...]]" inline prosody marker from text,
// leaving the surrounding copy untouched.
func StripMarkers(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, markerPrefix)
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := strings.Index(text[start:], markerSuffix)
		if end < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:start])
		text = text[start+end+len(markerSuffix):]
	}
	return b.String()
}

// ChatRequest is the chat endpoint's external request shape (§6.1).
type ChatRequest struct {
	Tenant    string    `json:"tenant"`
	Actor     string    `json:"actor"`
	SessionID string    `json:"session_id,omitempty"`
	InputText string    `json:"input_text"`
	Deadline  time.Time `json:"deadline,omitempty"`
}

// ChatResponse is the chat endpoint's external response shape (§6.1).
type ChatResponse struct {
	RequestID      string   `json:"request_id"`
	OutputMarkdown string   `json:"output_markdown"`
	Artifacts      []string `json:"artifacts"`
}

// Adapter serves the chat endpoint over HTTP.
type Adapter struct {
	Runner   channel.Runner
	NewReqID func() string
}

// Handle executes one chat turn: builds a RequestContext, runs the
// pipeline, strips prosody markers from the rendered text, and returns a
// ChatResponse.
func (a *Adapter) Handle(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	requestID := a.NewReqID()
	initial := graph.State{"messages": []any{req.InputText}}
	rc := channel.NewRequestContext(ctx, channel.Request{
		RequestID: requestID,
		Tenant:    req.Tenant,
		Actor:     req.Actor,
		SessionID: req.SessionID,
		Deadline:  req.Deadline,
		Input:     initial,
	})

	out, err := a.Runner.Run(rc, initial)
	final := channel.FinalResponse(out, err, requestID)

	text, _ := final["value"].(string)
	list, _ := final["artifacts"].(map[string]any)

	resp := ChatResponse{
		RequestID:      requestID,
		OutputMarkdown: StripMarkers(text),
		Artifacts:      channel.SortedKeys(list),
	}
	return resp, err
}

// Mount registers the chat endpoint (and a Server-Sent-Events streaming
// variant) on mux.
func Mount(mux goahttp.Muxer, a *Adapter) {
	mux.Handle(http.MethodPost, "/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := a.Handle(r.Context(), req)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			log.Printf(r.Context(), "chat request %s failed: %v", resp.RequestID, err)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.Handle(http.MethodPost, "/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		streamChat(w, r, a, req)
	})
}

// streamChat runs the pipeline and streams Server-Sent Events ending with a
// final event (§4.9, §6.1). When Runner is a channel.CompiledRunner it runs
// with a channel.TraceStreamer checkpointer and relays node_entered events
// in executor-completion order before the final event; any other Runner
// sends only the final event. No tool_invoked or tool_returned events are
// emitted.
func streamChat(w http.ResponseWriter, r *http.Request, a *Adapter, req ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	events := make(chan channel.StreamEvent, 16)
	requestID := a.NewReqID()
	rc := channel.NewRequestContext(r.Context(), channel.Request{
		RequestID: requestID,
		Tenant:    req.Tenant,
		Actor:     req.Actor,
		SessionID: req.SessionID,
		Deadline:  req.Deadline,
	})

	done := make(chan struct{})
	go func() {
		defer close(events)
		defer close(done)
		runner, ok := a.Runner.(channel.CompiledRunner)
		if !ok {
			_, _ = a.Runner.Run(rc, graph.State{"messages": []any{req.InputText}})
			return
		}
		runner.Options.Checkpointer = &channel.TraceStreamer{Events: events}
		_, _ = runner.Run(rc, graph.State{"messages": []any{req.InputText}})
	}()

	for ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: {\"node_id\":%q}\n\n", ev.Kind, ev.NodeID)
		flusher.Flush()
	}
	fmt.Fprintf(w, "event: final\ndata: {\"request_id\":%q}\n\n", requestID)
	flusher.Flush()
}
