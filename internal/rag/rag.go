package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"scheme-research/internal/embedding"
	"scheme-research/internal/llmservice"
	"scheme-research/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Index is a searchable vector index over the chunks of one processing pass.
type Index interface {
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.ScoredChunk, error)
	Count() int
}

type RAG struct {
	embedder embeddings.Embedder
	topK     int
}

func NewRAG(embedder embeddings.Embedder, topK int) *RAG {
	if topK <= 0 {
		topK = 10
	}
	return &RAG{embedder: embedder, topK: topK}
}

// Query retrieves the top-k chunks for query and asks the model to answer
// from them only.
func (r *RAG) Query(ctx context.Context, index Index, llm llms.Model, modelName, query string) (*models.Answer, error) {
	if index == nil {
		return nil, fmt.Errorf("no index to query")
	}
	queryEmbedding, err := embedding.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}

	hits, err := index.Search(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}
	log.Debug().Msgf("Retrieved %d chunks for query %q", len(hits), query)

	prompt := BuildPrompt(hits, query)
	out, err := llmservice.GenerateContent(ctx, llm, models.SystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer with %s: %w", modelName, err)
	}

	answer := StripThinking(out)
	if IsShortAnswer(answer) {
		log.Warn().Msgf("Short or empty answer for query: %s", query)
	}

	return &models.Answer{
		Query:   query,
		Content: answer,
		Sources: Sources(hits),
		Model:   modelName,
	}, nil
}

// Summarize runs the fixed summary prompts, each as an independent query.
func (r *RAG) Summarize(ctx context.Context, index Index, llm llms.Model, modelName string) (map[string]string, error) {
	sections := make(map[string]string, len(models.SummarySections))
	for _, section := range models.SummarySections {
		log.Info().Msgf("Generating summary section %s", section)
		ans, err := r.Query(ctx, index, llm, modelName, models.SummaryPrompts[section])
		if err != nil {
			return nil, fmt.Errorf("summary section %s: %w", section, err)
		}
		text := ans.Content
		if text == "" {
			text = models.NoInformation
		}
		sections[section] = text
	}
	return sections, nil
}

// BuildPrompt stuffs the retrieved chunks into the grounding prompt.
func BuildPrompt(hits []models.ScoredChunk, query string) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Chunk.Content
	}
	return fmt.Sprintf(models.GroundingPromptTemplate, strings.Join(parts, models.ContextSeparator), query)
}

// Sources lists the distinct chunk sources in retrieval order.
func Sources(hits []models.ScoredChunk) []string {
	seen := make(map[string]bool, len(hits))
	var out []string
	for _, h := range hits {
		s := h.Chunk.Source
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// IsShortAnswer reports answers under MinAnswerLength characters.
func IsShortAnswer(answer string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(answer)) < models.MinAnswerLength
}

// StripThinking removes <think> reasoning blocks emitted by some models.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
