package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/logging"
)

// Agent is a single-shot structured extractor: one prompt, one forced
// tool, and a local handler that validates the tool input.
type Agent struct {
	name         string
	apiClient    *APIClient
	registry     *ToolRegistry
	systemPrompt string
	toolChoice   string
	maxTokens    int
	logger       *zap.Logger
}

// AgentConfig configures an agent
type AgentConfig struct {
	Name         string
	APIKey       string
	Model        string
	Temperature  float64
	SystemPrompt string

	// ToolChoice is "auto", "any" or a tool name the model must call
	ToolChoice string
	MaxTokens  int

	// APIURL overrides the Anthropic messages endpoint
	APIURL string
	Logger *zap.Logger
}

func NewAgent(cfg AgentConfig) *Agent {
	client := NewAPIClient(cfg.APIKey, cfg.Model, cfg.Temperature)
	if cfg.APIURL != "" {
		client.WithAPIURL(cfg.APIURL)
	}
	return &Agent{
		name:         cfg.Name,
		apiClient:    client,
		registry:     NewToolRegistry(),
		systemPrompt: cfg.SystemPrompt,
		toolChoice:   cfg.ToolChoice,
		maxTokens:    cfg.MaxTokens,
		logger:       logging.OrNop(cfg.Logger),
	}
}

func (a *Agent) Name() string {
	return a.name
}

// MustRegisterTool adds a tool and panics on error
func (a *Agent) MustRegisterTool(tool Tool, handler ToolHandler) {
	a.registry.MustRegister(tool, handler)
}

// ExecuteTool runs one call and returns the first invocation of the named
// tool with its handler output. It returns nil when the model did not
// call the tool.
func (a *Agent) ExecuteTool(ctx context.Context, input AgentInput, toolName string) (*ToolCall, error) {
	system := a.systemPrompt
	if input.System != "" {
		system = input.System
	}

	resp, err := a.apiClient.Call(ctx, input.Messages, CallOptions{
		System:     system,
		Tools:      a.registry.Tools(),
		ToolChoice: a.toolChoice,
		MaxTokens:  a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}
	a.logger.Debug("Agent call finished",
		zap.String("agent", a.name),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("tokens", resp.Usage.Total()))

	for _, block := range resp.Content {
		toolUse, ok := block.(ToolUseBlock)
		if !ok || toolUse.Name != toolName {
			continue
		}
		output, err := a.registry.Execute(ctx, toolUse.Name, toolUse.Input)
		return &ToolCall{
			Name:   toolUse.Name,
			Input:  toolUse.Input,
			Output: output,
			Error:  err,
		}, nil
	}
	return nil, nil
}

// IsConfigured returns true if the agent's API client is configured
func (a *Agent) IsConfigured() bool {
	return a.apiClient != nil && a.apiClient.IsConfigured()
}
