// Package api implements the API channel adapter (C9): structured JSON in,
// structured JSON out, with no markup stripping (§4.9).
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"goa.design/clue/log"
	goahttp "goa.design/goa/v3/http"

	"github.com/nwalker85/agentfoundry-sub000/channel"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

// APIRequest is the API endpoint's external request shape (§6.1).
type APIRequest struct {
	Tenant    string          `json:"tenant"`
	Actor     string          `json:"actor"`
	InputJSON json.RawMessage `json:"input_json"`
	Deadline  time.Time       `json:"deadline,omitempty"`
}

// APIResponse is the API endpoint's external response shape (§6.1).
type APIResponse struct {
	RequestID  string         `json:"request_id"`
	OutputJSON map[string]any `json:"output_json"`
}

// Adapter serves the API endpoint over HTTP.
type Adapter struct {
	Runner   channel.Runner
	NewReqID func() string
}

// Handle decodes input_json verbatim into the pipeline's initial state
// under "input_json" and returns final_response unmodified as
// output_json — no Markdown rendering or marker stripping, unlike chat.
func (a *Adapter) Handle(ctx context.Context, req APIRequest) (APIResponse, error) {
	requestID := a.NewReqID()
	var input any
	if len(req.InputJSON) > 0 {
		if err := json.Unmarshal(req.InputJSON, &input); err != nil {
			return APIResponse{RequestID: requestID}, err
		}
	}

	initial := graph.State{"input_json": input}
	rc := channel.NewRequestContext(ctx, channel.Request{
		RequestID: requestID,
		Tenant:    req.Tenant,
		Actor:     req.Actor,
		Deadline:  req.Deadline,
		Input:     initial,
	})

	out, err := a.Runner.Run(rc, initial)
	final := channel.FinalResponse(out, err, requestID)
	return APIResponse{RequestID: requestID, OutputJSON: final}, err
}

// Mount registers the API endpoint on mux.
func Mount(mux goahttp.Muxer, a *Adapter) {
	mux.Handle(http.MethodPost, "/api/run", func(w http.ResponseWriter, r *http.Request) {
		var req APIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := a.Handle(r.Context(), req)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			log.Printf(r.Context(), "api request %s failed: %v", resp.RequestID, err)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
