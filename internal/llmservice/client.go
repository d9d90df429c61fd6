package llmservice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"scheme-research/internal/config"
)

// NewModelFunc builds a chat model client for one model identifier.
type NewModelFunc func(model string) (llms.Model, error)

// Factory hands out one chat client per model identifier and keeps it for
// the lifetime of the process. Clients are never evicted.
type Factory struct {
	mu      sync.Mutex
	newFn   NewModelFunc
	clients map[string]llms.Model
}

func NewFactory(newFn NewModelFunc) *Factory {
	return &Factory{newFn: newFn, clients: make(map[string]llms.Model)}
}

// NewOpenAICompatible returns a constructor for an OpenAI compatible endpoint
// (Groq by default) authenticated with apiKey.
func NewOpenAICompatible(llmConfig *config.LLMConfig, apiKey string) NewModelFunc {
	return func(model string) (llms.Model, error) {
		log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", model).Msg("Creating LLM client")
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
			openai.WithModel(model),
		)
	}
}

// Get returns the memoised client for model, creating it on first use.
func (f *Factory) Get(model string) (llms.Model, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if llm, ok := f.clients[model]; ok {
		return llm, nil
	}
	llm, err := f.newFn(model)
	if err != nil {
		return nil, fmt.Errorf("create llm client %s: %w", model, err)
	}
	f.clients[model] = llm
	log.Info().Msgf("LLM client initialised for model %s", model)
	return llm, nil
}

// GenerateContent sends a system and a user message and returns the text of
// the first choice.
func GenerateContent(ctx context.Context, llm llms.Model, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}
