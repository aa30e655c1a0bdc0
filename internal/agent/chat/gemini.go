package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-pro"

// GeminiGenerator streams replies from Gemini.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a Gemini-backed generator. It returns nil
// when apiKey is empty.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, temperature float64, opts ...option.ClientOption) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model, temperature: float32(temperature)}, nil
}

// Close releases the Gemini client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func (g *GeminiGenerator) Name() string { return "gemini" }

// geminiContents splits turns into chat history and the message to send.
func geminiContents(turns []turn) ([]*genai.Content, genai.Text) {
	history := make([]*genai.Content, 0, len(turns)-1)
	for _, t := range turns[:len(turns)-1] {
		role := "model"
		if t.fromClient {
			role = "user"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.text)}})
	}
	return history, genai.Text(turns[len(turns)-1].text)
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request, onChunk ChunkFunc) (string, error) {
	turns, err := buildTurns(req.History)
	if err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(BuildSystemPrompt(req))}}

	cs := model.StartChat()
	history, latest := geminiContents(turns)
	cs.History = history

	var reply strings.Builder
	iter := cs.SendMessageStream(ctx, latest)
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return reply.String(), fmt.Errorf("gemini stream failed: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				text, ok := part.(genai.Text)
				if !ok {
					continue
				}
				reply.WriteString(string(text))
				if err := emit(onChunk, string(text)); err != nil {
					return reply.String(), err
				}
			}
		}
	}

	out := strings.TrimSpace(reply.String())
	if out == "" {
		return "", fmt.Errorf("gemini returned an empty reply")
	}
	return out, nil
}
