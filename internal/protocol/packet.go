package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vibecollab/vibeagent/internal/domain"
)

// Channel is the named sub-channel carrying replicated-state packets, kept
// separate from other traffic on the same session.
const Channel = "vibe_agent_state"

type PacketType string

const (
	PacketAddMessage    PacketType = "CHAT_MESSAGE_ADD"
	PacketUpdateMessage PacketType = "CHAT_MESSAGE_UPDATE"
	PacketAddContext    PacketType = "CONTEXT_ADD"
	PacketRemoveContext PacketType = "CONTEXT_REMOVE"
)

// MessageUpdate replaces the content of an existing message. Content is the
// full cumulative text, not a delta, so peers tolerate lost or reordered
// intermediate updates.
type MessageUpdate struct {
	ID      domain.MessageID `json:"id"`
	Content string           `json:"content"`
}

type ContextRemoval struct {
	ID domain.ContextID `json:"id"`
}

// Packet is one unit of replicated-state mutation. Origin identifies the
// sending participant and Seq increases monotonically per origin, letting the
// reducer discard stale updates instead of trusting arrival order.
type Packet struct {
	Type   PacketType `json:"type"`
	Origin string     `json:"origin,omitempty"`
	Seq    uint64     `json:"seq,omitempty"`

	Message *domain.ChatMessage     `json:"message,omitempty"`
	Update  *MessageUpdate          `json:"update,omitempty"`
	Context *domain.CodeContextFile `json:"context,omitempty"`
	Remove  *ContextRemoval         `json:"remove,omitempty"`
}

func EncodePacket(p Packet) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s packet: %w", p.Type, err)
	}
	return raw, nil
}

// DecodePacket parses raw bytes into a Packet and checks that the payload
// variant matches the declared type. Callers are expected to log and ignore
// decode failures rather than terminate the session.
func DecodePacket(raw []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		return Packet{}, fmt.Errorf("decoding packet: %w", err)
	}

	switch p.Type {
	case PacketAddMessage:
		if p.Message == nil {
			return Packet{}, fmt.Errorf("%s packet missing message payload", p.Type)
		}
	case PacketUpdateMessage:
		if p.Update == nil {
			return Packet{}, fmt.Errorf("%s packet missing update payload", p.Type)
		}
	case PacketAddContext:
		if p.Context == nil {
			return Packet{}, fmt.Errorf("%s packet missing context payload", p.Type)
		}
	case PacketRemoveContext:
		if p.Remove == nil {
			return Packet{}, fmt.Errorf("%s packet missing removal payload", p.Type)
		}
	default:
		return Packet{}, fmt.Errorf("unknown packet type %q", p.Type)
	}

	return p, nil
}

// Envelope frames a packet for transport, scoping it to a topic so protocol
// traffic does not collide with anything else published on the session.
type Envelope struct {
	Topic  string `json:"topic"`
	Origin string `json:"origin"`
	Data   []byte `json:"data"`
}

func EncodeEnvelope(e Envelope) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return raw, nil
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if e.Topic == "" {
		return Envelope{}, fmt.Errorf("envelope missing topic")
	}
	return e, nil
}

// Broadcaster sends a packet to every other participant in the session.
// Sending is best-effort: implementations fail silently when no transport
// channel is established.
type Broadcaster interface {
	Broadcast(p Packet)
}
