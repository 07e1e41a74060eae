package protocol

import (
	"sync"

	"github.com/vibecollab/vibeagent/internal/domain"
)

// State is the replicated session state every participant maintains: the chat
// transcript and the code-context list. All mutations, locally originated or
// received from a peer, funnel through Apply so that peers holding the same
// packet set converge to the same visible state.
type State struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
	contexts []domain.CodeContextFile

	// Highest sequence number applied per message id. Stale UpdateMessage
	// packets (delivered out of order) are discarded against this.
	lastSeq map[domain.MessageID]uint64
}

func NewState() *State {
	return &State{
		lastSeq: make(map[domain.MessageID]uint64),
	}
}

// Apply runs the reducer for one packet.
//
//   - AddMessage appends unconditionally; duplicates are prevented by caller
//     discipline (one send per logical message), not by the reducer.
//   - UpdateMessage replaces content by id. An absent id is a no-op, and a
//     sequence number at or below the highest seen for that id is discarded.
//   - AddContext inserts only if the id is absent (idempotent).
//   - RemoveContext removes by id if present (idempotent).
func (s *State) Apply(p Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.Type {
	case PacketAddMessage:
		s.messages = append(s.messages, *p.Message)
		if p.Seq > s.lastSeq[p.Message.ID] {
			s.lastSeq[p.Message.ID] = p.Seq
		}

	case PacketUpdateMessage:
		if p.Seq != 0 && p.Seq <= s.lastSeq[p.Update.ID] {
			return
		}
		for i := range s.messages {
			if s.messages[i].ID == p.Update.ID {
				s.messages[i].Content = p.Update.Content
				if p.Seq > s.lastSeq[p.Update.ID] {
					s.lastSeq[p.Update.ID] = p.Seq
				}
				return
			}
		}

	case PacketAddContext:
		for i := range s.contexts {
			if s.contexts[i].ID == p.Context.ID {
				return
			}
		}
		s.contexts = append(s.contexts, *p.Context)

	case PacketRemoveContext:
		for i := range s.contexts {
			if s.contexts[i].ID == p.Remove.ID {
				s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
				return
			}
		}
	}
}

// ResolveContext replaces the content of an existing context entry in place.
// It is a local-only step of the fetch pipeline (placeholder to resolved
// content) and is never driven by a packet.
func (s *State) ResolveContext(id domain.ContextID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.contexts {
		if s.contexts[i].ID == id {
			s.contexts[i].Content = content
			return true
		}
	}
	return false
}

// Messages returns a copy of the transcript in append order.
func (s *State) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// ContextFiles returns a copy of the code-context list in insertion order.
func (s *State) ContextFiles() []domain.CodeContextFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CodeContextFile, len(s.contexts))
	copy(out, s.contexts)
	return out
}

// HasContextURL reports whether any context entry carries the exact URL.
func (s *State) HasContextURL(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.contexts {
		if s.contexts[i].URL == url {
			return true
		}
	}
	return false
}
