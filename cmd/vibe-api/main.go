package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	httpadapter "github.com/vibecollab/vibeagent/internal/adapters/http"
	"github.com/vibecollab/vibeagent/internal/adapters/inference"
	"github.com/vibecollab/vibeagent/internal/adapters/relay"
	"github.com/vibecollab/vibeagent/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Inference backend by config (mock is useful for dev).
	var gen inference.Generator
	switch cfg.InferenceBackend {
	case config.BackendGemini:
		log.Println("[INFERENCE] Using Gemini backend")
		gen, err = inference.NewGeminiGenerator(ctx, inference.GeminiConfig{
			APIKey:   cfg.GeminiAPIKey,
			Project:  cfg.GCPProject,
			Location: cfg.GCPLocation,
			Model:    cfg.ModelName,
		})
		if err != nil {
			log.Fatalf("error initializing Gemini backend: %v", err)
		}
	case config.BackendOpenAI:
		log.Println("[INFERENCE] Using OpenAI-compatible backend")
		gen = inference.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		log.Println("[INFERENCE] Using MOCK backend")
		gen = inference.NewMockGenerator()
	}

	// Relay fan-out: Redis across instances, in-process otherwise.
	var bus relay.Bus
	if cfg.RedisAddr != "" {
		log.Printf("[RELAY] Using Redis fan-out (%s)", cfg.RedisAddr)
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("could not connect to Redis: %v", err)
		}
		bus = relay.NewRedisBus(rdb)
	} else {
		log.Println("[RELAY] Using in-process fan-out")
		bus = relay.NewLocalBus()
	}

	issuer := httpadapter.NewTokenIssuer(cfg.TokenAPIKey, cfg.TokenSecret, cfg.TokenTTL)
	hub := relay.NewHub(bus, issuer.Verify)
	handler := httpadapter.NewServer(gen, issuer, hub)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: ask-agent responses stream until the upstream
		// signals completion.
	}

	go func() {
		log.Println("vibe-api listening on port:", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
