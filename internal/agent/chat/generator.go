// Package chat generates the conversational reply for turns where no
// booking action was executed.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/logging"
)

// ErrNoClientMessage means the history does not end with a client message.
var ErrNoClientMessage = errors.New("history does not end with a client message")

// ChunkFunc receives streamed reply text. Returning an error stops generation.
type ChunkFunc func(chunk string) error

// Generator produces the assistant reply for a turn.
type Generator interface {
	Generate(ctx context.Context, req Request, onChunk ChunkFunc) (string, error)
	Name() string
}

// turn is one speaker change in the conversation.
type turn struct {
	fromClient bool
	text       string
}

// buildTurns merges consecutive messages of the same sender and drops
// leading assistant messages, which both model APIs reject.
func buildTurns(history []database.ConversationMessage) ([]turn, error) {
	var turns []turn
	for _, msg := range history {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		fromClient := msg.Sender == database.SenderClient
		if len(turns) == 0 && !fromClient {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].fromClient == fromClient {
			turns[n-1].text += "\n" + text
			continue
		}
		turns = append(turns, turn{fromClient: fromClient, text: text})
	}
	if len(turns) == 0 || !turns[len(turns)-1].fromClient {
		return nil, ErrNoClientMessage
	}
	return turns, nil
}

func emit(onChunk ChunkFunc, chunk string) error {
	if onChunk == nil || chunk == "" {
		return nil
	}
	return onChunk(chunk)
}

// fallbackGenerator tries generators in order until one succeeds.
type fallbackGenerator struct {
	generators []Generator
	logger     *zap.Logger
}

// WithFallback returns a generator that moves to the next generator when
// one fails before streaming any text. nil generators are skipped.
func WithFallback(logger *zap.Logger, generators ...Generator) Generator {
	var usable []Generator
	for _, g := range generators {
		if g != nil {
			usable = append(usable, g)
		}
	}
	return &fallbackGenerator{generators: usable, logger: logging.OrNop(logger)}
}

func (f *fallbackGenerator) Name() string {
	names := make([]string, len(f.generators))
	for i, g := range f.generators {
		names[i] = g.Name()
	}
	return strings.Join(names, "+")
}

func (f *fallbackGenerator) Generate(ctx context.Context, req Request, onChunk ChunkFunc) (string, error) {
	if len(f.generators) == 0 {
		return "", fmt.Errorf("no reply generator configured")
	}

	var lastErr error
	for _, g := range f.generators {
		streamed := false
		reply, err := g.Generate(ctx, req, func(chunk string) error {
			streamed = true
			return emit(onChunk, chunk)
		})
		if err == nil {
			return reply, nil
		}
		if streamed || ctx.Err() != nil {
			return reply, err
		}
		f.logger.Warn("Reply generator failed, trying next",
			zap.String("generator", g.Name()), zap.Error(err))
		lastErr = err
	}
	return "", lastErr
}
