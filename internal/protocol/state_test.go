package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/protocol"
)

func addMessage(id, content string, seq uint64) protocol.Packet {
	return protocol.Packet{
		Type:   protocol.PacketAddMessage,
		Origin: "peer-a",
		Seq:    seq,
		Message: &domain.ChatMessage{
			ID:      domain.MessageID(id),
			Author:  domain.AuthorUser,
			Content: content,
		},
	}
}

func updateMessage(id, content string, seq uint64) protocol.Packet {
	return protocol.Packet{
		Type:   protocol.PacketUpdateMessage,
		Origin: "peer-a",
		Seq:    seq,
		Update: &protocol.MessageUpdate{ID: domain.MessageID(id), Content: content},
	}
}

func addContext(id, url string) protocol.Packet {
	return protocol.Packet{
		Type:   protocol.PacketAddContext,
		Origin: "peer-a",
		Context: &domain.CodeContextFile{
			ID:       domain.ContextID(id),
			URL:      url,
			FileName: "main.go",
			Content:  "package main",
		},
	}
}

func removeContext(id string) protocol.Packet {
	return protocol.Packet{
		Type:   protocol.PacketRemoveContext,
		Origin: "peer-a",
		Remove: &protocol.ContextRemoval{ID: domain.ContextID(id)},
	}
}

func contextIDs(s *protocol.State) []string {
	var ids []string
	for _, f := range s.ContextFiles() {
		ids = append(ids, string(f.ID))
	}
	return ids
}

func TestAddMessageIsNotDeduplicated(t *testing.T) {
	s := protocol.NewState()

	s.Apply(addMessage("m1", "hello", 1))
	s.Apply(addMessage("m1", "hello", 1))

	// Duplicate suppression is caller discipline, not reducer policy.
	assert.Len(t, s.Messages(), 2)
}

func TestUpdateMessageReplacesContent(t *testing.T) {
	s := protocol.NewState()

	s.Apply(addMessage("m1", "Thi", 1))
	s.Apply(updateMessage("m1", "This fu", 2))
	s.Apply(updateMessage("m1", "This function...", 3))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "This function...", msgs[0].Content)
}

func TestUpdateMessageUnknownIDIsNoOp(t *testing.T) {
	s := protocol.NewState()
	s.Apply(addMessage("m1", "hello", 1))

	before := s.Messages()
	s.Apply(updateMessage("ghost", "boo", 2))
	after := s.Messages()

	assert.Equal(t, before, after)
}

func TestUpdateMessageDiscardsStaleSequence(t *testing.T) {
	s := protocol.NewState()
	s.Apply(addMessage("m1", "Thi", 1))

	// Seq 3 arrives before seq 2; the late seq 2 must not win.
	s.Apply(updateMessage("m1", "This function...", 3))
	s.Apply(updateMessage("m1", "This fu", 2))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "This function...", msgs[0].Content)
}

func TestUpdateMessageWithoutSequenceIsLastArrivalWins(t *testing.T) {
	s := protocol.NewState()
	s.Apply(addMessage("m1", "a", 0))

	s.Apply(updateMessage("m1", "newer", 0))
	s.Apply(updateMessage("m1", "older", 0))

	assert.Equal(t, "older", s.Messages()[0].Content)
}

func TestAddContextIsIdempotent(t *testing.T) {
	s := protocol.NewState()

	pkt := addContext("f1", "https://github.com/a/b/blob/main/main.go")
	s.Apply(pkt)
	s.Apply(pkt)

	assert.Equal(t, []string{"f1"}, contextIDs(s))
}

func TestRemoveContextIsIdempotent(t *testing.T) {
	s := protocol.NewState()

	s.Apply(addContext("f1", "https://github.com/a/b/blob/main/main.go"))
	s.Apply(removeContext("f1"))
	s.Apply(removeContext("f1"))

	assert.Empty(t, s.ContextFiles())
	// Removing something never seen is also fine.
	s.Apply(removeContext("ghost"))
	assert.Empty(t, s.ContextFiles())
}

// Context packets for distinct ids commute: every arrival order of the same
// packet set yields the same final set of ids.
func TestContextPacketsCommuteAcrossDeliveryOrders(t *testing.T) {
	packets := []protocol.Packet{
		addContext("f1", "https://github.com/a/b/blob/main/one.go"),
		addContext("f1", "https://github.com/a/b/blob/main/one.go"),
		addContext("f2", "https://github.com/a/b/blob/main/two.go"),
		removeContext("f3"),
	}

	var orders [][]int
	var permute func(cur, rest []int)
	permute = func(cur, rest []int) {
		if len(rest) == 0 {
			orders = append(orders, append([]int(nil), cur...))
			return
		}
		for i := range rest {
			next := append(append([]int(nil), rest[:i]...), rest[i+1:]...)
			permute(append(cur, rest[i]), next)
		}
	}
	permute(nil, []int{0, 1, 2, 3})

	for _, order := range orders {
		s := protocol.NewState()
		for _, i := range order {
			s.Apply(packets[i])
		}
		assert.ElementsMatch(t, []string{"f1", "f2"}, contextIDs(s), "order %v", order)
	}
}

// Peer B receives AddContext then RemoveContext for the same file, even
// though A originated them in that same order long apart. B's local delivery
// order governs: the file ends up absent.
func TestRemoveObservedAfterAddWinsOnReceiver(t *testing.T) {
	b := protocol.NewState()

	b.Apply(addContext("f1", "https://github.com/a/b/blob/main/main.go"))
	b.Apply(removeContext("f1"))

	assert.Empty(t, b.ContextFiles())
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := protocol.NewState()
	s.Apply(addMessage("m1", "hello", 1))

	snap := s.Messages()
	snap[0].Content = "mutated"

	assert.Equal(t, "hello", s.Messages()[0].Content)
}
