package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/consultdesk/bookingagent/internal/agent"
)

// ClaudeGenerator streams replies from the Anthropic messages API.
type ClaudeGenerator struct {
	client    *agent.APIClient
	maxTokens int
}

// NewClaudeGenerator creates a Claude-backed generator. It returns nil
// when apiKey is empty.
func NewClaudeGenerator(apiKey, model string, temperature float64) *ClaudeGenerator {
	if apiKey == "" {
		return nil
	}
	return &ClaudeGenerator{
		client:    agent.NewAPIClient(apiKey, model, temperature),
		maxTokens: 1024,
	}
}

// WithAPIURL points the generator at a different messages endpoint.
func (g *ClaudeGenerator) WithAPIURL(url string) *ClaudeGenerator {
	g.client.WithAPIURL(url)
	return g
}

func (g *ClaudeGenerator) Name() string { return "claude" }

func (g *ClaudeGenerator) Generate(ctx context.Context, req Request, onChunk ChunkFunc) (string, error) {
	turns, err := buildTurns(req.History)
	if err != nil {
		return "", err
	}

	messages := make([]agent.Message, len(turns))
	for i, t := range turns {
		role := "assistant"
		if t.fromClient {
			role = "user"
		}
		messages[i] = agent.NewTextMessage(role, t.text)
	}

	resp, err := g.client.Stream(ctx, messages, agent.CallOptions{
		System:    BuildSystemPrompt(req),
		MaxTokens: g.maxTokens,
	}, func(text string) error {
		return emit(onChunk, text)
	})
	if err != nil {
		return "", fmt.Errorf("claude reply failed: %w", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("claude returned an empty reply")
	}
	return out, nil
}
