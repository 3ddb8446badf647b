// Package anthropic adapts the Anthropic Messages API as a uniform
// toolclient.Server, so an LLM completion can be invoked through the same
// envelope as any other tool (§4.4's "uniform request/response envelope").
// Grounded on the teacher's Caller abstraction
// (_examples/goadesign-goa-ai/runtime/mcp/caller.go), which this mirrors at
// the transport boundary: one method, context-scoped, envelope in/out.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nwalker85/agentfoundry-sub000/toolclient"
)

// Server wraps an Anthropic client as a toolclient.Server. The tool's single
// argument, "prompt", is sent as the user turn; "system" is optional.
type Server struct {
	client anthropic.Client
	model  anthropic.Model
}

// New constructs a Server. apiKey is passed through to the SDK's option
// layer; model selects the completion model (e.g. anthropic.ModelClaude3_7SonnetLatest).
func New(apiKey string, model anthropic.Model) *Server {
	return &Server{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Call implements toolclient.Server.
func (s *Server) Call(ctx context.Context, req toolclient.Request) (toolclient.Response, error) {
	prompt, _ := req.Arguments["prompt"].(string)
	if prompt == "" {
		return toolclient.Response{Outcome: toolclient.OutcomeFatalError, Error: "missing required argument \"prompt\""}, nil
	}
	system, _ := req.Arguments["system"].(string)

	params := anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return toolclient.Response{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	value, err := json.Marshal(map[string]any{"text": text, "stop_reason": string(msg.StopReason)})
	if err != nil {
		return toolclient.Response{}, fmt.Errorf("anthropic: marshal result: %w", err)
	}
	return toolclient.Response{Outcome: toolclient.OutcomeOK, Value: value}, nil
}
