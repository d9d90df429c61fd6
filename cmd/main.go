package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scheme-research/internal/api"
	"scheme-research/internal/applog"
	"scheme-research/internal/chromemdb"
	"scheme-research/internal/chunker"
	"scheme-research/internal/config"
	"scheme-research/internal/db"
	"scheme-research/internal/embedding"
	"scheme-research/internal/helper"
	"scheme-research/internal/llmservice"
	"scheme-research/internal/models"
	"scheme-research/internal/parser"
	"scheme-research/internal/rag"
	"scheme-research/internal/session"
	"scheme-research/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	mode := flag.String("mode", "serve", "Front end to run: serve or tui")
	filePath := flag.String("file", "", "Document to process once (with -query or -dry-run)")
	urls := flag.String("urls", "", "Space separated URLs to process once (with -query)")
	query := flag.String("query", "", "Question to answer against -file or -urls")
	dryRun := flag.Bool("dry-run", false, "Parse and chunk -file, print the chunks and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	var console io.Writer = os.Stdout
	if *mode == "tui" && *query == "" && !*dryRun {
		console = nil
	}
	closer, err := applog.Setup(cfg.Storage.LogsDir, level, console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if *dryRun {
		if *filePath == "" {
			log.Fatal().Msg("Please provide a document file using the -file flag with -dry-run")
		}
		chunkFile(cfg, *filePath)
		return
	}

	apiKey, err := cfg.APIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Fatal().Err(err).Msg("LLM API key not configured")
	}
	log.Info().Msgf("%s loaded", cfg.LLM.APIKeyEnv)

	orch, cleanup := buildOrchestrator(cfg, apiKey)
	defer cleanup()

	if *query != "" {
		answerOnce(orch, *filePath, *urls, *query)
		return
	}

	switch *mode {
	case "serve":
		serve(cfg, orch)
	case "tui":
		if _, err := tea.NewProgram(tui.New(orch), tea.WithAltScreen()).Run(); err != nil {
			log.Fatal().Err(err).Msg("Error running terminal UI")
		}
	default:
		log.Fatal().Msgf("Unknown mode %q, expected serve or tui", *mode)
	}
}

func buildOrchestrator(cfg *config.Config, apiKey string) (*session.Orchestrator, func()) {
	cleanup := func() {}

	for _, dir := range []string{cfg.Storage.UploadsDir, cfg.Storage.IndexDir} {
		if err := helper.CreateFolder(dir); err != nil {
			log.Fatal().Err(err).Msg("Error creating folder")
		}
	}

	splitter, err := chunker.New(cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chunker")
	}

	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	var build session.IndexBuilder
	switch cfg.VectorStore.Type {
	case "pgvector":
		store, err := db.NewStore(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		cleanup = func() { _ = store.Close() }
		build = func(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (rag.Index, error) {
			idx, err := store.Build(ctx, chunks, vectors)
			if err != nil {
				return nil, err
			}
			return idx, nil
		}
	case "chromem":
		mgr, err := chromemdb.NewVectorDBManager(
			cfg.Storage.IndexDir,
			cfg.VectorStore.Collection,
			cfg.VectorStore.InMemory,
			cfg.VectorStore.Compress,
			cfg.RAG.EncryptionKey,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating vector database manager")
		}
		build = func(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (rag.Index, error) {
			idx, err := mgr.Build(ctx, chunks, vectors)
			if err != nil {
				return nil, err
			}
			return idx, nil
		}
	default:
		log.Fatal().Msgf("Unknown vector store type %q", cfg.VectorStore.Type)
	}

	orch := session.New(cfg, session.Deps{
		Acquirer: parser.NewAcquirer(cfg.Storage.UploadsDir, &http.Client{}),
		Splitter: splitter,
		Embedder: embedder,
		Build:    build,
		Answerer: rag.NewRAG(embedder, cfg.RAG.TopK),
		Models:   llmservice.NewFactory(llmservice.NewOpenAICompatible(&cfg.LLM, apiKey)),
	})
	return orch, cleanup
}

func serve(cfg *config.Config, orch *session.Orchestrator) {
	router := api.NewRouter(api.NewController(orch, cfg.Server.MaxUploadBytes))
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Msgf("Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
}

// chunkFile parses and chunks a document without embedding it.
func chunkFile(cfg *config.Config, filePath string) {
	docs, err := parser.ParseFile(filePath, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	splitter, err := chunker.New(cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chunker")
	}
	chunks, err := splitter.Split(docs)
	if err != nil {
		log.Fatal().Err(err).Msg("Error chunking document")
	}
	log.Info().Msgf("Parsed %d pages into %d chunks", len(docs), len(chunks))
	helper.PrettyPrint(chunks)
}

// answerOnce processes the given input and answers a single question.
func answerOnce(orch *session.Orchestrator, filePath, urls, query string) {
	ctx := context.Background()
	var in session.ProcessInput

	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading document")
		}
		in.FileName = filePath
		in.FileData = data
		_ = orch.SetInputType(session.InputPDF)
	case urls != "":
		in.URLs = strings.Fields(urls)
		_ = orch.SetInputType(session.InputURLs)
	default:
		log.Fatal().Msg("Please provide a document using -file or -urls together with -query")
	}

	res, err := orch.Process(ctx, in)
	if err != nil {
		log.Fatal().Err(err).Strs("warnings", res.Warnings).Msg("Error processing input")
	}
	for _, w := range res.Warnings {
		log.Warn().Msg(w)
	}

	rec, _, err := orch.Ask(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, l := range orch.Links(rec.Sources) {
		fmt.Println(l.Source)
	}
	fmt.Println()

	log.Info().Msgf("Assistant (%s): ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>", rec.Model)
	fmt.Printf("%s\n\n", rec.Answer)
}
