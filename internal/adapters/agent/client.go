package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vibecollab/vibeagent/internal/domain"
)

// Client is the HTTP client for the inference boundary: it POSTs one composed
// request and consumes the chunked plain-text reply incrementally.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Ask implements domain.AgentClient. onChunk is called once per received body
// fragment until the upstream signals end-of-data. No timeout is imposed; the
// stream runs until completion or connection failure.
func (c *Client) Ask(ctx context.Context, req domain.AgentRequest, onChunk func(text string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ask-agent", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not connect to the agent backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("agent request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(errText)))
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			onChunk(string(buf[:n]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading agent stream: %w", err)
		}
	}
}
