package inference

import (
	"context"

	"github.com/vibecollab/vibeagent/internal/domain"
)

// Generator streams natural-language output for one composed assistant
// request. emit is called per text fragment; a non-nil error from emit aborts
// the stream.
type Generator interface {
	GenerateStream(ctx context.Context, req domain.AgentRequest, emit func(text string) error) error
}
