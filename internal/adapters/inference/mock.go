package inference

import (
	"context"

	"github.com/vibecollab/vibeagent/internal/domain"
)

const mockReply = "I looked at the shared screens. Tell me a bit more about what you want to change and I'll walk through it with you."

// MockGenerator streams a canned reply in small fragments, for local
// development and tests.
type MockGenerator struct {
	Reply     string
	ChunkSize int
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Reply: mockReply, ChunkSize: 16}
}

func (m *MockGenerator) GenerateStream(_ context.Context, _ domain.AgentRequest, emit func(text string) error) error {
	reply := m.Reply
	if reply == "" {
		reply = mockReply
	}
	size := m.ChunkSize
	if size <= 0 {
		size = 16
	}

	for start := 0; start < len(reply); start += size {
		end := min(start+size, len(reply))
		if err := emit(reply[start:end]); err != nil {
			return err
		}
	}
	return nil
}
