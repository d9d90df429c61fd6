package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"scheme-research/internal/config"
	"scheme-research/internal/models"
)

type ChunkRow struct {
	bun.BaseModel `bun:"table:scheme_chunks,alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	ChunkID       string          `bun:"chunk_id,notnull"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	Page          int             `bun:"page"`
	ChunkIndex    int             `bun:"chunk_index"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Similarity    float32         `bun:"similarity,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with either bun's pgdriver or lib/pq.
func ConnectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	switch cfg.Driver {
	case "pq", "postgres":
		return sql.Open("postgres", cfg.URL)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Store keeps one pgvector table holding the current index.
type Store struct {
	db         *bun.DB
	vectorSize int
}

func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: NewDB(sqldb, cfg.Debug), vectorSize: cfg.VectorSize}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if _, err := s.db.NewDropTable().Model((*ChunkRow)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("drop chunks table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*ChunkRow)(nil)).Exec(ctx); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	return nil
}

// Build recreates the table and inserts every chunk with its embedding.
func (s *Store) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	rows, err := toRows(chunks, vectors, s.vectorSize)
	if err != nil {
		return nil, err
	}
	if err := s.initDB(ctx); err != nil {
		return nil, err
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}
	log.Info().Msgf("Vector store created with %d documents in table scheme_chunks.", len(rows))
	return &Index{db: s.db, count: len(rows)}, nil
}

func toRows(chunks []models.Chunk, vectors [][]float32, vectorSize int) ([]ChunkRow, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks to index")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	rows := make([]ChunkRow, len(chunks))
	for i, ch := range chunks {
		if vectorSize > 0 && len(vectors[i]) != vectorSize {
			return nil, fmt.Errorf("embedding for %s has %d dimensions, expected %d", ch.ID, len(vectors[i]), vectorSize)
		}
		rows[i] = ChunkRow{
			ChunkID:    ch.ID,
			Content:    ch.Content,
			Source:     ch.Source,
			Page:       ch.Page,
			ChunkIndex: ch.Index,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}
	return rows, nil
}

// Index is the table built by the last Build call.
type Index struct {
	db    *bun.DB
	count int
}

func (i *Index) Count() int { return i.count }

// Search orders rows by cosine distance to the query embedding.
func (i *Index) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.ScoredChunk, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	k = min(k, i.count)
	if k <= 0 {
		return nil, nil
	}

	q := pgvector.NewVector(queryEmbedding)
	var rows []ChunkRow
	err := i.db.NewSelect().
		Model(&rows).
		Column("chunk_id", "content", "source", "page", "chunk_index").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", q).
		OrderExpr("embedding <=> ?", q).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	out := make([]models.ScoredChunk, len(rows))
	for j, r := range rows {
		out[j] = models.ScoredChunk{
			Chunk: models.Chunk{
				ID:      r.ChunkID,
				Content: r.Content,
				Source:  r.Source,
				Page:    r.Page,
				Index:   r.ChunkIndex,
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}
