package mocks

import (
	"context"

	"github.com/consultdesk/bookingagent/internal/agent/chat"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock implementation of chat.Generator. The reply
// returned by Generate is also passed to onChunk when non-empty.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req chat.Request, onChunk chat.ChunkFunc) (string, error) {
	args := m.Called(ctx, req)
	reply := args.String(0)
	if err := args.Error(1); err != nil {
		return "", err
	}
	if onChunk != nil && reply != "" {
		if err := onChunk(reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func (m *MockGenerator) Name() string {
	return "mock"
}

// MockReplier is a mock implementation of the channel reply sender
type MockReplier struct {
	mock.Mock
}

func (m *MockReplier) SendText(ctx context.Context, identifier, text string) error {
	args := m.Called(ctx, identifier, text)
	return args.Error(0)
}
