package relay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vibecollab/vibeagent/internal/observability"
	"github.com/vibecollab/vibeagent/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// VerifyFunc checks a participant's token grants access to a room.
type VerifyFunc func(token, room string) error

// Hub relays state envelopes between the participants of a room. It never
// echoes an envelope back to its origin identity: the origin has already
// applied its own mutation locally before broadcasting.
type Hub struct {
	bus    Bus
	verify VerifyFunc
	log    *slog.Logger
}

// NewHub builds a hub over the given bus. verify may be nil to accept any
// connection (local development).
func NewHub(bus Bus, verify VerifyFunc) *Hub {
	return &Hub{
		bus:    bus,
		verify: verify,
		log:    observability.Component("relay"),
	}
}

// ServeWS upgrades one participant connection and joins it to its room.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	identity := r.URL.Query().Get("identity")
	if room == "" || identity == "" {
		http.Error(w, "room and identity are required", http.StatusBadRequest)
		return
	}

	if h.verify != nil {
		if err := h.verify(r.URL.Query().Get("token"), room); err != nil {
			h.log.Warn("rejected join", "room", room, "identity", identity, "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := h.log.With("room", room, "identity", identity)
	log.Info("participant joined")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sub, cancel, err := h.bus.Subscribe(ctx, room)
	if err != nil {
		log.Error("subscribe failed", "error", err)
		return
	}
	defer cancel()

	// One writer goroutine per connection; gorilla allows a single concurrent
	// writer.
	go func() {
		for raw := range sub {
			env, err := protocol.DecodeEnvelope(raw)
			if err != nil {
				log.Warn("dropping undecodable envelope from bus", "error", err)
				continue
			}
			if env.Origin == identity {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Info("write failed, closing", "error", err)
				stop()
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Info("participant left", "error", err)
			return
		}
		if _, err := protocol.DecodeEnvelope(raw); err != nil {
			log.Warn("ignoring undecodable envelope from client", "error", err)
			continue
		}
		if err := h.bus.Publish(ctx, room, raw); err != nil {
			log.Error("publish failed", "error", err)
		}
	}
}
