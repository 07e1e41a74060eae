package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/observability"
)

// Recognizer wraps a platform speech-to-text engine behind start/stop. Only
// finalized recognition results are accumulated into the transcript; interim
// partials are dropped. A nil engine means the platform offers no speech
// capability, which is reported, not treated as a failure.
type Recognizer struct {
	engine domain.RecognitionEngine
	log    *slog.Logger

	mu         sync.Mutex
	listening  bool
	transcript strings.Builder
}

func NewRecognizer(engine domain.RecognitionEngine) *Recognizer {
	return &Recognizer{
		engine: engine,
		log:    observability.Component("speech"),
	}
}

// Supported reports whether the host platform offers speech recognition.
func (r *Recognizer) Supported() bool {
	return r.engine != nil
}

// Start resets the transcript and begins accumulating final results. Starting
// while already listening is a no-op.
func (r *Recognizer) Start(ctx context.Context) error {
	if !r.Supported() {
		r.log.Warn("speech recognition not supported on this platform")
		return nil
	}

	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return nil
	}
	r.transcript.Reset()
	r.listening = true
	r.mu.Unlock()

	results, err := r.engine.Start(ctx)
	if err != nil {
		r.mu.Lock()
		r.listening = false
		r.mu.Unlock()
		return err
	}

	go r.consume(results)
	return nil
}

// consume drains results until the engine closes the channel. A platform
// initiated end is reflected in the listening flag, not surfaced as an error.
func (r *Recognizer) consume(results <-chan domain.RecognitionResult) {
	for res := range results {
		if !res.Final {
			continue
		}
		r.mu.Lock()
		r.transcript.WriteString(res.Text)
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.listening = false
	r.mu.Unlock()
}

// Stop ends recognition. Stopping while not listening is a no-op.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	listening := r.listening
	r.mu.Unlock()

	if !listening || r.engine == nil {
		return
	}
	if err := r.engine.Stop(); err != nil {
		r.log.Warn("stopping recognition", "error", err)
	}
}

func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Transcript returns the accumulated finalized text so far.
func (r *Recognizer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript.String()
}
