package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type InferenceBackend string

const (
	BackendMock   InferenceBackend = "mock"
	BackendGemini InferenceBackend = "gemini"
	BackendOpenAI InferenceBackend = "openai"
)

type Config struct {
	Port string

	InferenceBackend InferenceBackend

	// Gemini backend. Either an API key, or a project+location pair for
	// Vertex-hosted access.
	GeminiAPIKey string
	GCPProject   string
	GCPLocation  string
	ModelName    string

	// OpenAI-compatible backend.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Session token issuance.
	TokenAPIKey string
	TokenSecret string
	TokenTTL    time.Duration

	// Relay fan-out. Empty means in-process.
	RedisAddr string
}

// Load reads all VIBE_* env vars and builds the config. A missing credential
// for a selected backend is a configuration error and aborts startup.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VIBE")
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("inference_backend", string(BackendMock))
	v.SetDefault("gcp_location", "us-central1")
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("token_ttl", "1h")

	cfg := &Config{
		Port: v.GetString("port"),

		InferenceBackend: InferenceBackend(v.GetString("inference_backend")),

		GeminiAPIKey: v.GetString("gemini_api_key"),
		GCPProject:   v.GetString("gcp_project"),
		GCPLocation:  v.GetString("gcp_location"),
		ModelName:    v.GetString("model_name"),

		OpenAIAPIKey:  v.GetString("openai_api_key"),
		OpenAIBaseURL: v.GetString("openai_base_url"),
		OpenAIModel:   v.GetString("openai_model"),

		TokenAPIKey: v.GetString("token_api_key"),
		TokenSecret: v.GetString("token_secret"),
		TokenTTL:    v.GetDuration("token_ttl"),

		RedisAddr: v.GetString("redis_addr"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.InferenceBackend {
	case BackendMock:
	case BackendGemini:
		if c.GeminiAPIKey == "" && c.GCPProject == "" {
			return fmt.Errorf("gemini backend requires VIBE_GEMINI_API_KEY or VIBE_GCP_PROJECT")
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai backend requires VIBE_OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown inference backend %q", c.InferenceBackend)
	}

	if c.TokenSecret == "" {
		return fmt.Errorf("VIBE_TOKEN_SECRET must be set")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("VIBE_TOKEN_TTL must be positive")
	}

	return nil
}
