package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/vibecollab/vibeagent/internal/adapters/http"
	"github.com/vibecollab/vibeagent/internal/adapters/inference"
	"github.com/vibecollab/vibeagent/internal/adapters/relay"
	"github.com/vibecollab/vibeagent/internal/domain"
)

func newTestServer(gen inference.Generator) http.Handler {
	issuer := httpadapter.NewTokenIssuer("test-key", "test-secret", time.Hour)
	hub := relay.NewHub(relay.NewLocalBus(), nil)
	return httpadapter.NewServer(gen, issuer, hub)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h := newTestServer(inference.NewMockGenerator())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestTokenIssueAndVerify(t *testing.T) {
	h := newTestServer(inference.NewMockGenerator())

	rr := postJSON(t, h, "/api/token", map[string]string{
		"roomName": "vibe-session",
		"identity": "alice",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	// The issued token carries identity as subject and a grant for the room.
	parsed, err := jwt.Parse(resp.Token, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "test-key", claims["iss"])
	assert.Equal(t, "alice", claims["sub"])
	video := claims["video"].(map[string]any)
	assert.Equal(t, "vibe-session", video["room"])
	assert.Equal(t, true, video["roomJoin"])

	issuer := httpadapter.NewTokenIssuer("test-key", "test-secret", time.Hour)
	assert.NoError(t, issuer.Verify(resp.Token, "vibe-session"))
	assert.Error(t, issuer.Verify(resp.Token, "another-room"))
}

func TestTokenValidation(t *testing.T) {
	h := newTestServer(inference.NewMockGenerator())

	rr := postJSON(t, h, "/api/token", map[string]string{"roomName": "r"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, h, "/api/token", map[string]string{"identity": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader("{broken"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	issuer := httpadapter.NewTokenIssuer("test-key", "test-secret", time.Hour)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "mallory",
		"video": map[string]any{"room": "vibe-session", "roomJoin": true},
	}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	assert.Error(t, issuer.Verify(forged, "vibe-session"))
}

func TestAskAgentStreamsPlainText(t *testing.T) {
	gen := &inference.MockGenerator{Reply: "streamed reply body", ChunkSize: 7}
	h := newTestServer(gen)

	rr := postJSON(t, h, "/api/ask-agent", domain.AgentRequest{
		Prompt:     "what does this do?",
		ImageDataA: "ZnJhbWUtYQ==",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "streamed reply body", rr.Body.String())
	assert.True(t, rr.Flushed)
}

func TestAskAgentValidation(t *testing.T) {
	h := newTestServer(inference.NewMockGenerator())

	rr := postJSON(t, h, "/api/ask-agent", domain.AgentRequest{ImageDataA: "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, h, "/api/ask-agent", domain.AgentRequest{Prompt: "hi"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// failingGenerator fails before emitting anything.
type failingGenerator struct{}

func (failingGenerator) GenerateStream(context.Context, domain.AgentRequest, func(string) error) error {
	return errors.New("model unavailable")
}

func TestAskAgentUpstreamFailureBeforeFirstByte(t *testing.T) {
	h := newTestServer(failingGenerator{})

	rr := postJSON(t, h, "/api/ask-agent", domain.AgentRequest{
		Prompt:     "hello",
		ImageDataA: "ZnJhbWUtYQ==",
	})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "error processing your request")
}

// truncatingGenerator emits one fragment, then fails mid-stream.
type truncatingGenerator struct{}

func (truncatingGenerator) GenerateStream(_ context.Context, _ domain.AgentRequest, emit func(string) error) error {
	if err := emit("partial "); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func TestAskAgentMidStreamFailureTruncates(t *testing.T) {
	h := newTestServer(truncatingGenerator{})

	rr := postJSON(t, h, "/api/ask-agent", domain.AgentRequest{
		Prompt:     "hello",
		ImageDataA: "ZnJhbWUtYQ==",
	})

	// Status was already committed; the body simply ends early.
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "partial ", rr.Body.String())
}
