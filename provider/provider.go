package provider

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/finassist/config"
	openai_provider "github.com/mohammad-safakhou/finassist/provider/openai"
)

// Client represents different LLM providers
type Client string

const OpenAI Client = "openai"

// ErrNoCredential is returned by a provider whose API key is not configured.
var ErrNoCredential = openai_provider.ErrNoCredential

// Generator produces a single-turn text completion.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Generator
	Embedder
}

// NewProvider creates a new LLM client based on the provided configuration.
// A missing API key is not an error here; calls fail with ErrNoCredential.
func NewProvider(client Client, cfg config.OpenAIConfig) (Provider, error) {
	switch client {
	case OpenAI:
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", client)
	}
}
