package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheme-research/internal/config"
	"scheme-research/internal/models"
)

type stubEmbedder struct {
	dropOne bool
	err     error
}

func (s stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t)), 1})
	}
	if s.dropOne {
		out = out[1:]
	}
	return out, nil
}

func (s stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, s.err
}

func TestEmbedChunks(t *testing.T) {
	chunks := []models.Chunk{{ID: "a", Content: "one"}, {ID: "b", Content: "three"}}

	vectors, err := EmbedChunks(context.Background(), stubEmbedder{}, chunks)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(3), vectors[0][0])
	assert.Equal(t, float32(5), vectors[1][0])
}

func TestEmbedChunks_Errors(t *testing.T) {
	chunks := []models.Chunk{{ID: "a", Content: "one"}, {ID: "b", Content: "three"}}

	_, err := EmbedChunks(context.Background(), stubEmbedder{dropOne: true}, chunks)
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = EmbedChunks(context.Background(), stubEmbedder{err: boom}, chunks)
	assert.ErrorIs(t, err, boom)

	vectors, err := EmbedChunks(context.Background(), stubEmbedder{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedQuery(t *testing.T) {
	_, err := EmbedQuery(context.Background(), stubEmbedder{}, "  ")
	assert.Error(t, err)

	v, err := EmbedQuery(context.Background(), stubEmbedder{}, "who is eligible?")
	require.NoError(t, err)
	assert.Len(t, v, 2)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(&config.LLMConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNew_Ollama(t *testing.T) {
	e, err := New(&config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
