// Package openai adapts the OpenAI Chat Completions API as a uniform
// toolclient.Server, mirroring toolclient/provider/anthropic's envelope
// contract; cmd/runtime registers it as the "llm.openai" tool that manifest
// bindings can target (§4.8 bundle bindings).
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nwalker85/agentfoundry-sub000/toolclient"
)

// Server wraps an OpenAI client as a toolclient.Server.
type Server struct {
	client openai.Client
	model  openai.ChatModel
}

// New constructs a Server.
func New(apiKey string, model openai.ChatModel) *Server {
	return &Server{client: openai.NewClient(option.WithAPIKey(apiKey)), model: model}
}

// Call implements toolclient.Server.
func (s *Server) Call(ctx context.Context, req toolclient.Request) (toolclient.Response, error) {
	prompt, _ := req.Arguments["prompt"].(string)
	if prompt == "" {
		return toolclient.Response{Outcome: toolclient.OutcomeFatalError, Error: "missing required argument \"prompt\""}, nil
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system, _ := req.Arguments["system"].(string); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return toolclient.Response{}, fmt.Errorf("openai: chat completions: %w", err)
	}
	if len(completion.Choices) == 0 {
		return toolclient.Response{Outcome: toolclient.OutcomeRetriableError, Error: "no choices returned"}, nil
	}

	value, err := json.Marshal(map[string]any{
		"text":          completion.Choices[0].Message.Content,
		"finish_reason": completion.Choices[0].FinishReason,
	})
	if err != nil {
		return toolclient.Response{}, fmt.Errorf("openai: marshal result: %w", err)
	}
	return toolclient.Response{Outcome: toolclient.OutcomeOK, Value: value}, nil
}
