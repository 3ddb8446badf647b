package main

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openaisdk "github.com/openai/openai-go"

	rtconfig "github.com/nwalker85/agentfoundry-sub000/internal/config"
	"github.com/nwalker85/agentfoundry-sub000/toolclient/inmem"
	providerAnthropic "github.com/nwalker85/agentfoundry-sub000/toolclient/provider/anthropic"
	"github.com/nwalker85/agentfoundry-sub000/toolclient/provider/bedrock"
	providerOpenAI "github.com/nwalker85/agentfoundry-sub000/toolclient/provider/openai"
)

// ToolAnthropic, ToolOpenAI and ToolBedrock are the manifest-facing endpoint-ref names a manifest's
// tools: [{name, endpoint-ref}] entries bind a worker to (§6.4); a manifest
// instance is free to declare a worker against whichever of these its
// tenant has credentials for.
const (
	ToolAnthropic = "llm.anthropic"
	ToolOpenAI    = "llm.openai"
	ToolBedrock   = "llm.bedrock"
)

// defaultAnthropicModel/defaultOpenAIModel/defaultBedrockModel are the
// model ids used for the registered llm.* tools — a richer deployment
// would let the manifest itself pin a model id per §9, but that is out of
// this exercise's scope.
const (
	defaultAnthropicModel = anthropicsdk.Model("claude-3-7-sonnet-latest")
	defaultOpenAIModel    = openaisdk.ChatModel("gpt-4o")
	defaultBedrockModel   = "anthropic.claude-3-5-sonnet-20241022-v2:0"
)

// registerLLMProviders registers a toolclient.Server for every LLM provider
// cfg has credentials for. Anthropic/OpenAI only need an API key; Bedrock
// is registered whenever an AWS region is configured (always true — §4.1
// defaults AWSRegion to us-east-1) since the AWS SDK's default credential
// chain resolves lazily at call time rather than at client construction,
// so a tenant with no Bedrock access only sees a failure the first time a
// worker actually calls it; that error is returned to the worker and is not
// retried.
func registerLLMProviders(ctx context.Context, cfg rtconfig.Config, reg *inmem.Registry) error {
	if cfg.AnthropicAPIKey != "" {
		reg.Register(ToolAnthropic, providerAnthropic.New(cfg.AnthropicAPIKey, defaultAnthropicModel), nil)
	}
	if cfg.OpenAIAPIKey != "" {
		reg.Register(ToolOpenAI, providerOpenAI.New(cfg.OpenAIAPIKey, defaultOpenAIModel), nil)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("cmd/runtime: load AWS config: %w", err)
	}
	reg.Register(ToolBedrock, bedrock.New(bedrockruntime.NewFromConfig(awsCfg), defaultBedrockModel), nil)
	return nil
}
