package agent

import (
	"context"
	"sync"

	"github.com/vibecollab/vibeagent/internal/domain"
)

// Scripted is an AgentClient that replays a fixed chunk sequence, for tests
// and local development without a backend.
type Scripted struct {
	Chunks []string
	Err    error

	mu   sync.Mutex
	reqs []domain.AgentRequest
}

func NewScripted(chunks ...string) *Scripted {
	return &Scripted{Chunks: chunks}
}

func (s *Scripted) Ask(_ context.Context, req domain.AgentRequest, onChunk func(text string)) error {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	for _, c := range s.Chunks {
		onChunk(c)
	}
	return nil
}

// Requests returns every request seen so far.
func (s *Scripted) Requests() []domain.AgentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AgentRequest, len(s.reqs))
	copy(out, s.reqs)
	return out
}
