// Package voice implements the voice channel adapter (C9): an audio
// stream in, transcribed to text via a C4 tool call, run through the
// pipeline, then synthesized back to audio on egress. Unlike chat, voice
// honours rather than strips the inline prosody markers (§9 Open
// Question; marker set shared with channel/chat via StripMarkers/the same
// "[[...]]" syntax, since TTS providers vary in whether they accept SSML
// directly).
package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"goa.design/clue/log"
	goahttp "goa.design/goa/v3/http"

	"github.com/nwalker85/agentfoundry-sub000/channel"
	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/toolclient"
)

// AudioHandle references an audio blob or stream opaque to this package —
// concretely backed by a storage ref or an in-flight transport buffer
// supplied by the voice transport layer (LiveKit etc., explicitly out of
// scope per spec.md §1; only this adapter contract is in scope).
type AudioHandle struct {
	Ref         string `json:"ref"`
	ContentType string `json:"content_type"`
}

// TranscribeToolName / SynthesizeToolName are the C4 tool names this
// adapter invokes for STT/TTS (§4.9 "via C4").
const (
	TranscribeToolName = "speech.transcribe"
	SynthesizeToolName = "speech.synthesize"
)

// VoiceRequest is the voice endpoint's control-message shape (§6.1:
// "control messages carry tenant, actor, session_id").
type VoiceRequest struct {
	Tenant    string      `json:"tenant"`
	Actor     string      `json:"actor"`
	SessionID string      `json:"session_id,omitempty"`
	Audio     AudioHandle `json:"audio"`
	Deadline  time.Time   `json:"deadline,omitempty"`
}

// VoiceResponse carries the synthesized reply audio plus the raw text, for
// callers that also want a transcript.
type VoiceResponse struct {
	RequestID   string      `json:"request_id"`
	OutputAudio AudioHandle `json:"output_audio"`
	OutputText  string      `json:"output_text"`
}

// Adapter serves the voice endpoint.
type Adapter struct {
	Runner   channel.Runner
	Tools    *toolclient.Client
	NewReqID func() string
}

// Handle transcribes the inbound audio, runs the pipeline, and synthesizes
// the reply, preserving prosody markers end to end.
func (a *Adapter) Handle(ctx context.Context, req VoiceRequest) (VoiceResponse, error) {
	requestID := a.NewReqID()

	transcriptText, err := a.transcribe(ctx, requestID, req)
	if err != nil {
		return VoiceResponse{RequestID: requestID}, err
	}

	rc := channel.NewRequestContext(ctx, channel.Request{
		RequestID: requestID,
		Tenant:    req.Tenant,
		Actor:     req.Actor,
		SessionID: req.SessionID,
		Deadline:  req.Deadline,
	})
	out, runErr := a.Runner.Run(rc, graph.State{"messages": []any{transcriptText}})
	final := channel.FinalResponse(out, runErr, requestID)
	text, _ := final["value"].(string)

	audio, err := a.synthesize(ctx, requestID, req, text)
	if err != nil {
		return VoiceResponse{RequestID: requestID, OutputText: text}, err
	}

	return VoiceResponse{RequestID: requestID, OutputAudio: audio, OutputText: text}, runErr
}

func (a *Adapter) transcribe(ctx context.Context, requestID string, req VoiceRequest) (string, error) {
	args := map[string]any{"audio_ref": req.Audio.Ref, "content_type": req.Audio.ContentType}
	key, err := toolclient.DeriveIdempotencyKey(TranscribeToolName, args, requestID)
	if err != nil {
		return "", err
	}
	resp, err := a.Tools.Call(ctx, toolclient.Request{
		ToolName:       TranscribeToolName,
		Arguments:      args,
		IdempotencyKey: key,
		Deadline:       req.Deadline,
		RequestID:      requestID,
		Tenant:         req.Tenant,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(resp.Value, &out)
	return out.Text, nil
}

func (a *Adapter) synthesize(ctx context.Context, requestID string, req VoiceRequest, text string) (AudioHandle, error) {
	args := map[string]any{"text": text}
	key, err := toolclient.DeriveIdempotencyKey(SynthesizeToolName, args, requestID)
	if err != nil {
		return AudioHandle{}, err
	}
	resp, err := a.Tools.Call(ctx, toolclient.Request{
		ToolName:       SynthesizeToolName,
		Arguments:      args,
		IdempotencyKey: key,
		Deadline:       req.Deadline,
		RequestID:      requestID,
		Tenant:         req.Tenant,
	})
	if err != nil {
		return AudioHandle{}, err
	}
	var out struct {
		AudioRef    string `json:"audio_ref"`
		ContentType string `json:"content_type"`
	}
	_ = json.Unmarshal(resp.Value, &out)
	return AudioHandle{Ref: out.AudioRef, ContentType: out.ContentType}, nil
}

// Mount registers the voice endpoint on mux. The request/response bodies
// carry audio handles (refs into a storage layer or transport buffer) in
// place of raw audio bytes, since the audio transport itself is out of
// scope (§1).
func Mount(mux goahttp.Muxer, a *Adapter) {
	mux.Handle(http.MethodPost, "/voice", func(w http.ResponseWriter, r *http.Request) {
		var req VoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := a.Handle(r.Context(), req)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			log.Printf(r.Context(), "voice request %s failed: %v", resp.RequestID, err)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
