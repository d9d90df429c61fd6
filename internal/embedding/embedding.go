package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"scheme-research/internal/config"
	"scheme-research/internal/models"
)

const batchSize = 64

// New creates the configured embedder. "ollama" talks to a local Ollama
// server; "openai" covers any OpenAI-compatible embeddings endpoint.
func New(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Loaded embedder config")

	switch cfg.Provider {
	case "ollama", "":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("init ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSize))
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSize))
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
}

// EmbedChunks computes one embedding per chunk, in chunk order.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding for chunk %s", chunks[i].ID)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a question for retrieval.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	v, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return v, nil
}
