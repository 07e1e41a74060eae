package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vibecollab/vibeagent/internal/observability"
	"github.com/vibecollab/vibeagent/internal/protocol"
)

// Outbound packets queued while disconnected, flushed on the next connect.
// Beyond this bound the oldest entry is dropped and logged.
const maxBacklog = 64

// DataChannel is the client side of the session broadcast transport: a
// websocket connection to the relay, scoped to the protocol's named
// sub-channel. Broadcasting with no established connection queues instead of
// failing; inbound traffic on other topics is ignored.
type DataChannel struct {
	serverURL string
	room      string
	token     string
	identity  string
	onPacket  func(raw []byte)
	log       *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	backlog [][]byte
}

// NewDataChannel prepares a channel for one room. onPacket receives the raw
// packet bytes of every envelope addressed to this protocol's topic from
// another participant.
func NewDataChannel(serverURL, room, token, identity string, onPacket func(raw []byte)) *DataChannel {
	return &DataChannel{
		serverURL: serverURL,
		room:      room,
		token:     token,
		identity:  identity,
		onPacket:  onPacket,
		log:       observability.Component("transport").With("room", room, "identity", identity),
	}
}

// Connect dials the relay and flushes any queued broadcasts.
func (d *DataChannel) Connect(ctx context.Context) error {
	q := url.Values{}
	q.Set("identity", d.identity)
	q.Set("token", d.token)
	wsURL := fmt.Sprintf("%s/ws/%s?%s", d.serverURL, url.PathEscape(d.room), q.Encode())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}

	d.mu.Lock()
	d.conn = conn
	pending := d.backlog
	d.backlog = nil
	for _, raw := range pending {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			d.log.Warn("flushing backlog failed", "error", err)
			break
		}
	}
	d.mu.Unlock()

	if len(pending) > 0 {
		d.log.Info("flushed outbound backlog", "count", len(pending))
	}

	go d.readLoop(conn)
	return nil
}

// Broadcast implements protocol.Broadcaster. There is no acknowledgment and
// no retry beyond the bounded reconnect backlog.
func (d *DataChannel) Broadcast(p protocol.Packet) {
	data, err := protocol.EncodePacket(p)
	if err != nil {
		d.log.Error("dropping unencodable packet", "type", p.Type, "error", err)
		return
	}
	raw, err := protocol.EncodeEnvelope(protocol.Envelope{
		Topic:  protocol.Channel,
		Origin: d.identity,
		Data:   data,
	})
	if err != nil {
		d.log.Error("dropping unencodable envelope", "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		d.enqueueLocked(raw)
		return
	}
	if err := d.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		d.log.Warn("broadcast write failed, queueing", "error", err)
		d.conn = nil
		d.enqueueLocked(raw)
	}
}

func (d *DataChannel) enqueueLocked(raw []byte) {
	if len(d.backlog) >= maxBacklog {
		d.backlog = d.backlog[1:]
		d.log.Warn("outbound backlog full, dropped oldest packet")
	}
	d.backlog = append(d.backlog, raw)
}

func (d *DataChannel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			d.mu.Lock()
			if d.conn == conn {
				d.conn = nil
			}
			d.mu.Unlock()
			d.log.Info("relay connection closed", "error", err)
			return
		}

		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			d.log.Warn("ignoring undecodable envelope", "error", err)
			continue
		}
		if env.Topic != protocol.Channel || env.Origin == d.identity {
			continue
		}
		if d.onPacket != nil {
			d.onPacket(env.Data)
		}
	}
}

// Connected reports whether a transport channel is currently established.
func (d *DataChannel) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *DataChannel) Close() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
