package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"scheme-research/internal/config"
	"scheme-research/internal/embedding"
	"scheme-research/internal/helper"
	"scheme-research/internal/models"
	"scheme-research/internal/parser"
	"scheme-research/internal/rag"
)

var (
	ErrNoUsableText   = errors.New("could not extract usable text from the given inputs")
	ErrNoIndex        = errors.New("no documents have been processed yet")
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrSourceMissing  = errors.New("source file not found")
	ErrCorpusTooLarge = errors.New("corpus exceeds the configured chunk limit")
	ErrUnknownModel   = errors.New("unknown model variant")
	ErrInvalidInput   = errors.New("unknown input type")
)

// Acquirer loads documents from URLs and uploads.
type Acquirer interface {
	FetchURLs(ctx context.Context, urls []string) ([]models.Document, []string, error)
	SaveUpload(name string, data []byte) (path, source string, err error)
	LoadUpload(path, source string) ([]models.Document, error)
	ResolveSource(source string) (path string, ok bool)
	ClearUploads() ([]string, error)
}

type Splitter interface {
	Split(docs []models.Document) ([]models.Chunk, error)
}

// IndexBuilder replaces the current vector index with one built from chunks.
type IndexBuilder func(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (rag.Index, error)

type Answerer interface {
	Query(ctx context.Context, index rag.Index, llm llms.Model, modelName, query string) (*models.Answer, error)
	Summarize(ctx context.Context, index rag.Index, llm llms.Model, modelName string) (map[string]string, error)
}

type ModelProvider interface {
	Get(model string) (llms.Model, error)
}

type Deps struct {
	Acquirer Acquirer
	Splitter Splitter
	Embedder embeddings.Embedder
	Build    IndexBuilder
	Answerer Answerer
	Models   ModelProvider
}

// ProcessInput carries the raw user input of one Process action. Only the
// part matching the session input type is used.
type ProcessInput struct {
	URLs     []string
	FileName string
	FileData []byte
}

type ProcessResult struct {
	Documents  int      `json:"documents"`
	Chunks     int      `json:"chunks"`
	Indexed    int      `json:"indexed"`
	Generation string   `json:"generation"`
	Warnings   []string `json:"warnings,omitempty"`
}

// SourceLink is one answer source split into web pages and stored uploads.
type SourceLink struct {
	Source  string `json:"source"`
	IsFile  bool   `json:"is_file"`
	Missing bool   `json:"missing,omitempty"`
}

// Orchestrator drives the session state machine. It is not safe for
// concurrent use; callers serialise actions.
type Orchestrator struct {
	cfg     *config.Config
	deps    Deps
	session *Session
	now     func() time.Time
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	o := &Orchestrator{cfg: cfg, deps: deps, now: time.Now}
	o.start()
	return o
}

func (o *Orchestrator) start() {
	o.session = newSession(o.cfg.LLM.Default, o.now())
	log.Info().Msg("===== NEW SESSION STARTED =====")
}

func (o *Orchestrator) Session() *Session { return o.session }

func (o *Orchestrator) View() View {
	s := o.session
	v := View{
		InputType:  s.InputType,
		State:      s.State(),
		Model:      s.SelectedModel,
		ModelID:    o.cfg.ModelFor(s.SelectedModel),
		Generation: s.Generation,
		History:    slices.Clone(s.History),
		StartedAt:  s.StartedAt,
	}
	if s.Index != nil {
		v.Chunks = s.Index.Count()
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.Sections = maps.Clone(s.Summary.Sections)
		v.Summary = &sum
	}
	return v
}

func (o *Orchestrator) SetInputType(t InputType) error {
	if _, ok := ParseInputType(string(t)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidInput, t)
	}
	o.session.InputType = t
	log.Info().Msgf("Input type set to %s", t)
	return nil
}

// SelectModel switches the model variant used by later answers and summaries.
func (o *Orchestrator) SelectModel(variant string) error {
	if _, ok := o.cfg.LLM.Models[variant]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, variant)
	}
	o.session.SelectedModel = variant
	log.Info().Msgf("Model selected: %s (%s)", variant, o.cfg.ModelFor(variant))
	return nil
}

// Process acquires, chunks, embeds and indexes the input. On success the new
// index replaces the previous one and the cached summary is dropped. When no
// text could be extracted the result still carries the warnings and the
// error is ErrNoUsableText.
func (o *Orchestrator) Process(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	s := o.session
	log.Info().Msgf("Processing started with input type %s", s.InputType)

	res := &ProcessResult{}
	var docs []models.Document

	if s.InputType == InputURLs && len(in.URLs) > 0 {
		fetched, warnings, err := o.deps.Acquirer.FetchURLs(ctx, in.URLs)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			log.Warn().Err(err).Msg("URL acquisition produced no text")
			if !errors.Is(err, parser.ErrNoUsableContent) {
				res.Warnings = append(res.Warnings, err.Error())
			}
		}
		docs = append(docs, fetched...)
	}

	if s.InputType == InputPDF && len(in.FileData) > 0 {
		loaded, err := o.loadUpload(in.FileName, in.FileData)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to load upload %s", in.FileName)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", in.FileName, err))
		}
		docs = append(docs, loaded...)
	}

	log.Info().Msgf("Loaded %d documents", len(docs))
	res.Documents = len(docs)

	chunks, err := o.deps.Splitter.Split(docs)
	if err != nil {
		return res, fmt.Errorf("split documents: %w", err)
	}
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		log.Warn().Msg("No usable text extracted from inputs")
		res.Warnings = append(res.Warnings, "Could not extract usable text from the given inputs.")
		return res, ErrNoUsableText
	}
	if limit := o.cfg.RAG.MaxChunks; limit > 0 && len(chunks) > limit {
		log.Warn().Msgf("Rejected corpus of %d chunks (limit %d)", len(chunks), limit)
		return res, fmt.Errorf("%w: %d > %d", ErrCorpusTooLarge, len(chunks), limit)
	}
	log.Info().Msgf("Created %d chunks", len(chunks))

	vectors, err := embedding.EmbedChunks(ctx, o.deps.Embedder, chunks)
	if err != nil {
		return res, err
	}
	index, err := o.deps.Build(ctx, chunks, vectors)
	if err != nil {
		return res, fmt.Errorf("build index: %w", err)
	}
	gen, err := helper.GenerateUUID()
	if err != nil {
		return res, err
	}

	s.Index = index
	s.Generation = gen
	s.Summary = nil

	res.Indexed = index.Count()
	res.Generation = gen
	log.Info().Msgf("Index %s ready with %d chunks", gen, res.Indexed)
	return res, nil
}

func (o *Orchestrator) loadUpload(name string, data []byte) ([]models.Document, error) {
	path, source, err := o.deps.Acquirer.SaveUpload(name, data)
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("Saved upload to %s", path)
	return o.deps.Acquirer.LoadUpload(path, source)
}

// GenerateSummary computes the four-section summary once per index.
func (o *Orchestrator) GenerateSummary(ctx context.Context) (*models.Summary, error) {
	s := o.session
	if s.Index == nil {
		return nil, ErrNoIndex
	}
	if s.Summary != nil && s.Summary.Generation == s.Generation {
		return s.Summary, nil
	}

	modelID := o.cfg.ModelFor(s.SelectedModel)
	llm, err := o.deps.Models.Get(modelID)
	if err != nil {
		return nil, err
	}
	sections, err := o.deps.Answerer.Summarize(ctx, s.Index, llm, modelID)
	if err != nil {
		log.Error().Err(err).Msg("Summary generation failed")
		return nil, err
	}

	s.Summary = &models.Summary{Sections: sections, Model: modelID, Generation: s.Generation}
	log.Info().Msgf("Summary generated with %s", modelID)
	return s.Summary, nil
}

// Ask answers a question. A question already in the history is returned
// from the history without calling the model; cached reports that case.
func (o *Orchestrator) Ask(ctx context.Context, question string) (rec models.QARecord, cached bool, err error) {
	s := o.session
	question = strings.TrimSpace(question)
	if question == "" {
		return rec, false, ErrEmptyQuestion
	}
	if prev, ok := s.Lookup(question); ok {
		log.Info().Msgf("Question already answered: %s", question)
		return prev, true, nil
	}
	if s.Index == nil {
		return rec, false, ErrNoIndex
	}

	log.Info().Msgf("Question: %s", question)
	modelID := o.cfg.ModelFor(s.SelectedModel)
	llm, err := o.deps.Models.Get(modelID)
	if err != nil {
		return rec, false, err
	}
	ans, err := o.deps.Answerer.Query(ctx, s.Index, llm, modelID, question)
	if err != nil {
		log.Error().Err(err).Msgf("Answer generation failed for question: %s", question)
		return rec, false, err
	}

	rec = models.QARecord{
		Question: question,
		Answer:   ans.Content,
		Sources:  ans.Sources,
		Model:    modelID,
		AskedAt:  o.now(),
	}
	s.History = append(s.History, rec)
	log.Info().Msgf("Answer: %s", ans.Content)
	return rec, false, nil
}

// Reset discards the session and deletes every stored upload. The session
// is replaced even if some files could not be removed.
func (o *Orchestrator) Reset() error {
	removed, err := o.deps.Acquirer.ClearUploads()
	for _, p := range removed {
		log.Info().Msgf("Deleted file: %s", p)
	}
	log.Info().Msg("Session reset")
	o.start()
	if err != nil {
		return fmt.Errorf("clear uploads: %w", err)
	}
	return nil
}

// ResolveSource returns the stored file behind an upload source identifier.
func (o *Orchestrator) ResolveSource(source string) (string, error) {
	path, ok := o.deps.Acquirer.ResolveSource(source)
	if !ok {
		return "", fmt.Errorf("%w: %s is not an uploaded file", ErrSourceMissing, source)
	}
	if _, err := os.Stat(path); err != nil {
		log.Warn().Msgf("Source file missing: %s", path)
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, source)
	}
	return path, nil
}

// Links classifies answer sources; uploads missing from disk are flagged.
func (o *Orchestrator) Links(sources []string) []SourceLink {
	links := make([]SourceLink, 0, len(sources))
	for _, src := range sources {
		if _, isFile := o.deps.Acquirer.ResolveSource(src); !isFile {
			links = append(links, SourceLink{Source: src})
			continue
		}
		_, err := o.ResolveSource(src)
		links = append(links, SourceLink{Source: src, IsFile: true, Missing: err != nil})
	}
	return links
}
