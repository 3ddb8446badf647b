// Package bedrock adapts AWS Bedrock Runtime's Converse API as a uniform
// toolclient.Server, the third of the uniform "LLM as tool" providers
// alongside toolclient/provider/{anthropic,openai}.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/nwalker85/agentfoundry-sub000/toolclient"
)

// Server wraps a Bedrock Runtime client as a toolclient.Server.
type Server struct {
	client  *bedrockruntime.Client
	modelID string
}

// New constructs a Server for the given Bedrock model id (e.g.
// "anthropic.claude-3-sonnet-20240229-v1:0").
func New(client *bedrockruntime.Client, modelID string) *Server {
	return &Server{client: client, modelID: modelID}
}

// Call implements toolclient.Server.
func (s *Server) Call(ctx context.Context, req toolclient.Request) (toolclient.Response, error) {
	prompt, _ := req.Arguments["prompt"].(string)
	if prompt == "" {
		return toolclient.Response{Outcome: toolclient.OutcomeFatalError, Error: "missing required argument \"prompt\""}, nil
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: &s.modelID,
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
	}
	if system, _ := req.Arguments["system"].(string); system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}

	out, err := s.client.Converse(ctx, input)
	if err != nil {
		return toolclient.Response{}, fmt.Errorf("bedrock: converse: %w", err)
	}

	var text string
	if msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msgOut.Value.Content {
			if tb, ok := block.(*types.ContentBlockMemberText); ok {
				text += tb.Value
			}
		}
	}
	value, err := json.Marshal(map[string]any{"text": text, "stop_reason": string(out.StopReason)})
	if err != nil {
		return toolclient.Response{}, fmt.Errorf("bedrock: marshal result: %w", err)
	}
	return toolclient.Response{Outcome: toolclient.OutcomeOK, Value: value}, nil
}
