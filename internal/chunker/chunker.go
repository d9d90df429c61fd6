package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"scheme-research/internal/config"
	"scheme-research/internal/models"
)

const (
	defaultChunkSize    = 300
	defaultChunkOverlap = 20

	StrategyWindow    = "window"
	StrategyRecursive = "recursive"
)

// Chunker splits documents into overlapping chunks, keeping the source metadata.
type Chunker struct {
	strategy string
	size     int
	overlap  int
	splitter textsplitter.TextSplitter
}

func New(cfg config.RAGConfig) (*Chunker, error) {
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}

	c := &Chunker{strategy: cfg.Chunker, size: size, overlap: overlap}
	switch cfg.Chunker {
	case StrategyWindow, "":
		c.strategy = StrategyWindow
	case StrategyRecursive:
		c.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker)
	}
	return c, nil
}

func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every document and numbers the chunks globally so IDs stay
// unique within one processing pass.
func (c *Chunker) Split(docs []models.Document) ([]models.Chunk, error) {
	var out []models.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		var (
			parts   []string
			offsets []int
		)
		switch c.strategy {
		case StrategyRecursive:
			texts, err := c.splitter.SplitText(doc.Content)
			if err != nil {
				return nil, fmt.Errorf("split %s: %w", doc.Source, err)
			}
			parts = texts
		default:
			parts, offsets = chunkContent(doc.Content, c.size, c.overlap)
		}

		for i, p := range parts {
			// window chunks are kept even when blank so Reconstruct stays exact
			if offsets == nil && strings.TrimSpace(p) == "" {
				continue
			}
			ch := models.Chunk{
				ID:      fmt.Sprintf("chunk-%05d", len(out)),
				Content: p,
				Source:  doc.Source,
				Page:    doc.Page,
				Index:   i,
			}
			if offsets != nil {
				ch.Offset = offsets[i]
			}
			out = append(out, ch)
		}
	}
	return out, nil
}

// chunkContent cuts content into windows of at most maxChars runes; each
// window after the first starts overlapChars runes before the previous one
// ended. Returns the chunks and their rune offsets.
func chunkContent(content string, maxChars, overlapChars int) ([]string, []int) {
	runes := []rune(content)
	if len(runes) == 0 || maxChars <= 0 {
		return nil, nil
	}
	if len(runes) <= maxChars {
		return []string{content}, []int{0}
	}

	stride := maxChars - overlapChars
	var (
		chunks  []string
		offsets []int
	)
	for start := 0; start < len(runes); start += stride {
		end := min(start+maxChars, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		offsets = append(offsets, start)
		if end == len(runes) {
			break
		}
	}
	return chunks, offsets
}

// Reconstruct returns the complete content of one document from its
// consecutive window chunks: the overlapping prefix of every chunk after the
// first is dropped.
func Reconstruct(chunks []models.Chunk, overlapChars int) string {
	var content strings.Builder
	for i, ch := range chunks {
		r := []rune(ch.Content)
		if i > 0 {
			r = r[min(overlapChars, len(r)):]
		}
		content.WriteString(string(r))
	}
	return content.String()
}
