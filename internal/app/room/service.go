package room

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vibecollab/vibeagent/internal/app/assistant"
	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/observability"
	"github.com/vibecollab/vibeagent/internal/protocol"
)

var ErrNoScreenShare = errors.New("at least one participant must be sharing their screen")

// Service holds one participant's view of a shared session: the replicated
// state, the broadcast channel, and the assistant pipeline. Every local
// mutation is applied through the reducer before it is broadcast, so this
// client never publishes a state it has not itself adopted.
type Service struct {
	identity string
	state    *protocol.State
	bc       protocol.Broadcaster
	orch     *assistant.Orchestrator
	log      *slog.Logger

	seq      atomic.Uint64
	thinking atomic.Bool
}

func NewService(
	identity string,
	bc protocol.Broadcaster,
	agent domain.AgentClient,
	capturer domain.FrameCapturer,
) *Service {
	s := &Service{
		identity: identity,
		state:    protocol.NewState(),
		bc:       bc,
		log:      observability.Component("room").With("identity", identity),
	}
	s.orch = assistant.NewOrchestrator(agent, capturer, s)
	return s
}

// commit stamps a packet with this participant's origin and next sequence
// number, applies it locally, then broadcasts it.
func (s *Service) commit(p protocol.Packet) {
	p.Origin = s.identity
	p.Seq = s.seq.Add(1)
	s.state.Apply(p)
	s.bc.Broadcast(p)
}

// HandleIncoming decodes and applies one raw packet received from a peer.
// Malformed packets are logged and ignored; the session is never torn down
// over a bad frame.
func (s *Service) HandleIncoming(raw []byte) {
	pkt, err := protocol.DecodePacket(raw)
	if err != nil {
		s.log.Warn("ignoring undecodable packet", "error", err)
		return
	}
	// The origin applies its own mutations before broadcasting, never through
	// this path.
	if pkt.Origin == s.identity {
		return
	}
	s.state.Apply(pkt)
}

// AskAgent submits one prompt against the current screen share(s). The reply
// streams into a single agent message replicated to all peers. Returns
// assistant.ErrRequestInFlight while a previous request is still active.
func (s *Service) AskAgent(ctx context.Context, prompt string, srcA, srcB domain.VideoSource, onDone func()) error {
	if srcA == nil {
		return ErrNoScreenShare
	}

	userMsg := domain.ChatMessage{
		ID:      domain.MessageID(uuid.NewString()),
		Author:  domain.AuthorUser,
		Content: prompt,
	}

	return s.orch.Ask(ctx, assistant.Request{
		Prompt:      prompt,
		SourceA:     srcA,
		SourceB:     srcB,
		UserMessage: userMsg,
		History:     s.Messages(),
		CodeContext: s.ContextFiles(),
		OnDone:      onDone,
	})
}

func (s *Service) Messages() []domain.ChatMessage {
	return s.state.Messages()
}

func (s *Service) ContextFiles() []domain.CodeContextFile {
	return s.state.ContextFiles()
}

func (s *Service) HasContextURL(url string) bool {
	return s.state.HasContextURL(url)
}

func (s *Service) Thinking() bool {
	return s.thinking.Load()
}

// ── assistant.Sink ──────────────────────────────────────────

func (s *Service) AppendMessage(msg domain.ChatMessage) {
	s.commit(protocol.Packet{Type: protocol.PacketAddMessage, Message: &msg})
}

func (s *Service) UpdateMessage(id domain.MessageID, cumulative string) {
	s.commit(protocol.Packet{
		Type:   protocol.PacketUpdateMessage,
		Update: &protocol.MessageUpdate{ID: id, Content: cumulative},
	})
}

func (s *Service) SetThinking(v bool) {
	s.thinking.Store(v)
}

// ── codecontext.Session ─────────────────────────────────────

// InsertContextLocal applies an optimistic placeholder entry without
// broadcasting it. Peers only ever see resolved entries.
func (s *Service) InsertContextLocal(f domain.CodeContextFile) {
	s.state.Apply(protocol.Packet{Type: protocol.PacketAddContext, Context: &f})
}

// DropContextLocal rolls back an optimistic insert without broadcasting.
func (s *Service) DropContextLocal(id domain.ContextID) {
	s.state.Apply(protocol.Packet{Type: protocol.PacketRemoveContext, Remove: &protocol.ContextRemoval{ID: id}})
}

// PublishContext resolves the entry's content in place and replicates the
// resolved entry to peers.
func (s *Service) PublishContext(f domain.CodeContextFile) {
	s.state.ResolveContext(f.ID, f.Content)
	s.commit(protocol.Packet{Type: protocol.PacketAddContext, Context: &f})
}

// RemoveContext removes locally and replicates the removal.
func (s *Service) RemoveContext(id domain.ContextID) {
	s.commit(protocol.Packet{Type: protocol.PacketRemoveContext, Remove: &protocol.ContextRemoval{ID: id}})
}
