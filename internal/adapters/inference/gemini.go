package inference

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"github.com/vibecollab/vibeagent/internal/domain"
)

type GeminiConfig struct {
	// APIKey selects the hosted Gemini API backend. When empty, Project and
	// Location select Vertex-hosted access instead.
	APIKey   string
	Project  string
	Location string
	Model    string
}

// GeminiGenerator implements Generator on the Gemini streaming API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("gemini generator requires an API key or a project and location")
		}
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) GenerateStream(ctx context.Context, req domain.AgentRequest, emit func(text string) error) error {
	contents, err := buildGeminiContents(req)
	if err != nil {
		return err
	}

	temp := float32(0.7)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   8192,
	}

	for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if text := chunk.Text(); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildGeminiContents(req domain.AgentRequest) ([]*genai.Content, error) {
	var contents []*genai.Content

	for _, m := range req.ChatHistory {
		role := genai.Role(genai.RoleUser)
		if m.Author == domain.AuthorAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	imageA, err := base64.StdEncoding.DecodeString(req.ImageDataA)
	if err != nil {
		return nil, fmt.Errorf("decoding image A: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(BuildUserPrompt(req)),
		genai.NewPartFromBytes(imageA, "image/jpeg"),
	}

	if req.ImageDataB != "" {
		imageB, err := base64.StdEncoding.DecodeString(req.ImageDataB)
		if err != nil {
			return nil, fmt.Errorf("decoding image B: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(imageB, "image/jpeg"))
	}

	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	return contents, nil
}
