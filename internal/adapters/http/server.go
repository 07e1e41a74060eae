package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vibecollab/vibeagent/internal/adapters/inference"
	"github.com/vibecollab/vibeagent/internal/adapters/relay"
	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/observability"
)

// Server exposes the session boundaries: token issuance, the streaming
// inference endpoint, and the websocket relay.
type Server struct {
	gen    inference.Generator
	tokens *TokenIssuer
	hub    *relay.Hub
}

func NewServer(gen inference.Generator, tokens *TokenIssuer, hub *relay.Hub) http.Handler {
	s := &Server{gen: gen, tokens: tokens, hub: hub}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/api/ask-agent", s.handleAskAgent).Methods(http.MethodPost)
	r.HandleFunc("/ws/{room}", s.hub.ServeWS)

	return chainMiddlewares(r, withLogging, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type tokenRequest struct {
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RoomName) == "" || strings.TrimSpace(req.Identity) == "" {
		badRequest(w, "roomName and identity are required")
		return
	}

	token, err := s.tokens.Issue(req.RoomName, req.Identity)
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// handleAskAgent proxies one composed request into the generator and streams
// the reply back as chunked plain text, flushing per fragment.
func (s *Server) handleAskAgent(w http.ResponseWriter, r *http.Request) {
	var req domain.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		badRequest(w, "prompt is required")
		return
	}
	if req.ImageDataA == "" {
		badRequest(w, "imageDataA is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, nil)
		return
	}

	log := observability.LoggerFromContext(r.Context())

	wrote := false
	err := s.gen.GenerateStream(r.Context(), req, func(text string) error {
		if !wrote {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			wrote = true
		}
		if _, err := io.WriteString(w, text); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		log.Error("generation failed", "error", err)
		if !wrote {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": "error processing your request",
			})
		}
		// Mid-stream failures just truncate the body; the client surfaces the
		// broken stream as an assistant error.
		return
	}

	if !wrote {
		// Empty generation: still deliver a well-formed empty 200.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, _ error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
