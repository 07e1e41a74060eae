package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/observability"
)

var (
	ErrRequestInFlight = errors.New("an assistant request is already in flight")
	ErrEmptyPrompt     = errors.New("prompt must not be empty")
	ErrNoVideoSource   = errors.New("a primary video source is required")
)

// System instructions differ only in addressing one screen versus two, not in
// task semantics.
const (
	SystemInstructionSolo = `You are the Vibe Agent, an expert AI co-pilot for a solo developer.
Your role is to assist a developer who is working alone.
You will be given the full conversation history, a screenshot from the user's screen, and potentially relevant code files from their repository.
Analyze all the provided information to give a comprehensive, accurate, and helpful response.
Provide your answers in well-formatted Markdown.`

	SystemInstructionPair = `You are the Vibe Agent, an expert AI pair programmer.
Your role is to assist two developers who are collaborating in real-time.
You will be given the full conversation history, screenshots from both User A and User B, and potentially relevant code files from their repository.
Analyze all the provided information to give a comprehensive, accurate, and helpful response.
Provide your answers in well-formatted Markdown.`
)

// Sink receives the orchestrator's state mutations. Implementations apply
// each mutation locally and replicate it to peers.
type Sink interface {
	AppendMessage(msg domain.ChatMessage)
	UpdateMessage(id domain.MessageID, cumulative string)
	SetThinking(v bool)
}

// Request is one user prompt against the current screen share(s). SourceB is
// nil in solo mode. The callbacks are optional.
type Request struct {
	Prompt      string
	SourceA     domain.VideoSource
	SourceB     domain.VideoSource
	UserMessage domain.ChatMessage
	History     []domain.ChatMessage
	CodeContext []domain.CodeContextFile

	OnChunk func(cumulative string)
	OnDone  func()
	OnError func(err error)
}

// Orchestrator turns one prompt plus one or two live screens into a streamed,
// replicated assistant reply. It enforces single-flight itself: a new request
// while one is active is rejected regardless of any UI-level guard.
type Orchestrator struct {
	agent    domain.AgentClient
	capturer domain.FrameCapturer
	sink     Sink
	log      *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

func NewOrchestrator(agent domain.AgentClient, capturer domain.FrameCapturer, sink Sink) *Orchestrator {
	return &Orchestrator{
		agent:    agent,
		capturer: capturer,
		sink:     sink,
		log:      observability.Component("assistant"),
	}
}

// Ask runs the full pipeline: capture one frame per source, compose the
// multi-modal request, stream the reply into a single agent message, and
// finish with exactly one OnDone call. Pipeline failures are converted into a
// synthetic agent-authored chat message (applied and broadcast like any
// other) rather than returned; only validation and single-flight rejections
// surface as errors.
func (o *Orchestrator) Ask(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if req.SourceA == nil {
		return ErrNoVideoSource
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrRequestInFlight
	}
	o.inFlight = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	o.sink.AppendMessage(req.UserMessage)
	o.sink.SetThinking(true)

	o.run(ctx, req)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) {
	fail := func(err error) {
		o.log.Error("assistant request failed", "error", err)
		o.sink.AppendMessage(domain.ChatMessage{
			ID:      domain.MessageID(uuid.NewString()),
			Author:  domain.AuthorAgent,
			Content: fmt.Sprintf("Error: %v", err),
		})
		o.sink.SetThinking(false)
		if req.OnError != nil {
			req.OnError(err)
		}
	}

	o.log.Info("capturing frames", "pair_mode", req.SourceB != nil)

	imageA, err := o.capturer.Capture(ctx, req.SourceA)
	if err != nil {
		fail(fmt.Errorf("capturing frame: %w", err))
		return
	}

	var imageB string
	if req.SourceB != nil {
		imageB, err = o.capturer.Capture(ctx, req.SourceB)
		if err != nil {
			fail(fmt.Errorf("capturing second frame: %w", err))
			return
		}
	}

	instruction := SystemInstructionSolo
	if imageB != "" {
		instruction = SystemInstructionPair
	}

	agentReq := domain.AgentRequest{
		Prompt:            req.Prompt,
		ChatHistory:       req.History,
		CodeContext:       req.CodeContext,
		ImageDataA:        imageA,
		ImageDataB:        imageB,
		SystemInstruction: instruction,
	}

	// One stable id for the whole reply. The message is created on the first
	// fragment; every fragment then republishes the full cumulative buffer so
	// peers tolerate lost or reordered updates.
	replyID := domain.MessageID(uuid.NewString())
	var buf strings.Builder
	first := true

	o.log.Info("awaiting assistant stream")

	err = o.agent.Ask(ctx, agentReq, func(chunk string) {
		buf.WriteString(chunk)
		cumulative := buf.String()

		if first {
			first = false
			o.sink.AppendMessage(domain.ChatMessage{
				ID:      replyID,
				Author:  domain.AuthorAgent,
				Content: cumulative,
			})
		}
		o.sink.UpdateMessage(replyID, cumulative)

		if req.OnChunk != nil {
			req.OnChunk(cumulative)
		}
	})
	if err != nil {
		fail(fmt.Errorf("contacting the assistant: %w", err))
		return
	}

	o.log.Info("assistant stream complete", "reply_bytes", buf.Len())
	o.sink.SetThinking(false)
	if req.OnDone != nil {
		req.OnDone()
	}
}
