// Package llm builds chat models and embedders for the pipeline on top of
// CloudWeGo Eino, with a TEI (Text Embeddings Inference) client for
// self-hosted embedding and rerank servers.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	geminiEmbed "github.com/cloudwego/eino-ext/components/embedding/gemini"
	ollamaEmbed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
)

// Provider identifies the chat/embedding backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderClaude Provider = "claude"
	ProviderGemini Provider = "gemini"
)

// DefaultOllamaURL is the default URL for a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// Config holds everything needed to construct a chat model or embedder.
type Config struct {
	Provider       Provider
	Model          string // chat model name
	EmbeddingModel string // embedding model name (optional)
	APIKey         string
	BaseURL        string // Ollama server URL (default: http://localhost:11434)
	Timeout        time.Duration
}

// ParseProvider validates a provider name from configuration.
func ParseProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderOpenAI, ProviderOllama, ProviderClaude, ProviderGemini:
		return Provider(p), nil
	default:
		return "", fmt.Errorf("unsupported LLM provider: %q (supported: openai, ollama, claude, gemini)", p)
	}
}

// NewChatModel creates an Eino BaseChatModel for the configured provider.
func NewChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case ProviderClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude API key is required")
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		// The Gemini extension reads its key from the environment.
		_ = os.Setenv("GOOGLE_API_KEY", cfg.APIKey)
		_ = os.Setenv("GEMINI_API_KEY", cfg.APIKey)
		return gemini.NewChatModel(ctx, &gemini.Config{
			Model: cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewEmbedder creates the embedder the indexing and retrieval sides share.
// A non-empty teiEndpoint always wins; otherwise the provider's own
// embedding API is used. Claude has no embedding API, so that provider
// requires a TEI endpoint.
func NewEmbedder(ctx context.Context, cfg Config, teiEndpoint string) (embedding.Embedder, error) {
	if teiEndpoint != "" {
		return NewTEIEmbedder(teiEndpoint, cfg.EmbeddingModel, cfg.Timeout), nil
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
			Model:  cfg.EmbeddingModel,
			APIKey: cfg.APIKey,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollamaEmbed.NewEmbedder(ctx, &ollamaEmbed.EmbeddingConfig{
			BaseURL: baseURL,
			Model:   cfg.EmbeddingModel,
		})

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		_ = os.Setenv("GOOGLE_API_KEY", cfg.APIKey)
		_ = os.Setenv("GEMINI_API_KEY", cfg.APIKey)
		return geminiEmbed.NewEmbedder(ctx, &geminiEmbed.EmbeddingConfig{
			Model: cfg.EmbeddingModel,
		})

	case ProviderClaude:
		return nil, fmt.Errorf("claude has no embedding API; set embedding.endpoint to a TEI server")

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// ProbeDimensions embeds a single probe string to learn the vector width
// the index must be created with.
func ProbeDimensions(ctx context.Context, e embedding.Embedder) (int, error) {
	vectors, err := e.EmbedStrings(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("probe embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("probe embedding returned no vector")
	}
	return len(vectors[0]), nil
}
