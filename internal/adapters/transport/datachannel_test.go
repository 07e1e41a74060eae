package transport_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecollab/vibeagent/internal/adapters/relay"
	"github.com/vibecollab/vibeagent/internal/adapters/transport"
	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/protocol"
)

func newRelayServer(t *testing.T) string {
	t.Helper()
	hub := relay.NewHub(relay.NewLocalBus(), nil)
	r := mux.NewRouter()
	r.HandleFunc("/ws/{room}", hub.ServeWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// collector accumulates raw packets delivered to a channel's callback.
type collector struct {
	mu      sync.Mutex
	packets []protocol.Packet
}

func (c *collector) onPacket(raw []byte) {
	p, err := protocol.DecodePacket(raw)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.packets = append(c.packets, p)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

func (c *collector) all() []protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Packet(nil), c.packets...)
}

func chatPacket(origin string, seq uint64, content string) protocol.Packet {
	return protocol.Packet{
		Type:   protocol.PacketAddMessage,
		Origin: origin,
		Seq:    seq,
		Message: &domain.ChatMessage{
			ID:      domain.MessageID(fmt.Sprintf("%s-%d", origin, seq)),
			Author:  domain.AuthorUser,
			Content: content,
		},
	}
}

func TestBroadcastReachesPeerButNotOrigin(t *testing.T) {
	serverURL := newRelayServer(t)

	aliceGot := &collector{}
	alice := transport.NewDataChannel(serverURL, "room-1", "", "alice", aliceGot.onPacket)
	bobGot := &collector{}
	bob := transport.NewDataChannel(serverURL, "room-1", "", "bob", bobGot.onPacket)

	require.NoError(t, alice.Connect(context.Background()))
	defer alice.Close()
	require.NoError(t, bob.Connect(context.Background()))
	defer bob.Close()
	time.Sleep(50 * time.Millisecond)

	alice.Broadcast(chatPacket("alice", 1, "hello bob"))

	require.Eventually(t, func() bool { return bobGot.len() == 1 }, time.Second, 5*time.Millisecond)
	got := bobGot.all()[0]
	assert.Equal(t, protocol.PacketAddMessage, got.Type)
	assert.Equal(t, "hello bob", got.Message.Content)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, aliceGot.len(), "origin must not receive its own packet")
}

func TestBroadcastQueuesWhileDisconnectedAndFlushesOnConnect(t *testing.T) {
	serverURL := newRelayServer(t)

	bobGot := &collector{}
	bob := transport.NewDataChannel(serverURL, "room-1", "", "bob", bobGot.onPacket)
	require.NoError(t, bob.Connect(context.Background()))
	defer bob.Close()
	time.Sleep(50 * time.Millisecond)

	alice := transport.NewDataChannel(serverURL, "room-1", "", "alice", nil)
	assert.False(t, alice.Connected())

	alice.Broadcast(chatPacket("alice", 1, "queued one"))
	alice.Broadcast(chatPacket("alice", 2, "queued two"))
	assert.Zero(t, bobGot.len())

	require.NoError(t, alice.Connect(context.Background()))
	defer alice.Close()
	assert.True(t, alice.Connected())

	require.Eventually(t, func() bool { return bobGot.len() == 2 }, time.Second, 5*time.Millisecond)
	got := bobGot.all()
	assert.Equal(t, "queued one", got[0].Message.Content)
	assert.Equal(t, "queued two", got[1].Message.Content)
}

func TestBacklogIsBoundedDroppingOldest(t *testing.T) {
	serverURL := newRelayServer(t)

	bobGot := &collector{}
	bob := transport.NewDataChannel(serverURL, "room-1", "", "bob", bobGot.onPacket)
	require.NoError(t, bob.Connect(context.Background()))
	defer bob.Close()
	time.Sleep(50 * time.Millisecond)

	alice := transport.NewDataChannel(serverURL, "room-1", "", "alice", nil)
	const sent = 70
	for i := 1; i <= sent; i++ {
		alice.Broadcast(chatPacket("alice", uint64(i), fmt.Sprintf("msg %d", i)))
	}

	require.NoError(t, alice.Connect(context.Background()))
	defer alice.Close()

	require.Eventually(t, func() bool { return bobGot.len() == 64 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	got := bobGot.all()
	require.Len(t, got, 64)

	// The oldest packets were dropped; delivery starts at the cut and
	// preserves order.
	assert.Equal(t, "msg 7", got[0].Message.Content)
	assert.Equal(t, "msg 70", got[len(got)-1].Message.Content)
}

func TestCloseIsIdempotent(t *testing.T) {
	serverURL := newRelayServer(t)

	ch := transport.NewDataChannel(serverURL, "room-1", "", "alice", nil)
	require.NoError(t, ch.Connect(context.Background()))
	assert.True(t, ch.Connected())

	require.NoError(t, ch.Close())
	assert.False(t, ch.Connected())
	require.NoError(t, ch.Close())
}

func TestDialFailure(t *testing.T) {
	ch := transport.NewDataChannel("ws://127.0.0.1:1", "room-1", "", "alice", nil)
	err := ch.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, ch.Connected())
}
