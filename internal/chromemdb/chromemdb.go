package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"scheme-research/internal/models"
)

// metadata keys stored with every chromem document
const (
	metaSource = "source"
	metaPage   = "page"
	metaIndex  = "chunk_index"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db             *chromem.DB
	dbPath         string
	collectionName string
	compress       bool
	encryptionKey  string
	filePath       string
}

// NewVectorDBManager initializes a new vector database manager. A persistent
// database writes every added document below dbPath.
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		dbPath:         dbPath,
		collectionName: collectionName,
		compress:       compress,
		encryptionKey:  encryptionKey,
		filePath:       filepath.Join(dbPath, collectionName+".chromem"),
	}, nil
}

// Build replaces the collection with a fresh one holding exactly the given
// chunks. The previous index, if any, is dropped (also on disk).
func (m *VectorDBManager) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks to index")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return nil, fmt.Errorf("failed to drop collection: %v", err)
	}
	// embeddings are always precomputed, so the collection never needs an embedding func
	c, err := m.db.CreateCollection(m.collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:      ch.ID,
			Content: ch.Content,
			Metadata: map[string]string{
				metaSource: ch.Source,
				metaPage:   strconv.Itoa(ch.Page),
				metaIndex:  strconv.Itoa(ch.Index),
			},
			Embedding: vectors[i],
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %v", err)
	}
	log.Info().Msgf("Vector store created with %d documents in collection %s.", c.Count(), m.collectionName)

	if m.encryptionKey != "" {
		if err := m.Export(); err != nil {
			return nil, err
		}
	}
	return &Index{collection: c}, nil
}

// Export writes an encrypted snapshot of the collection next to the database.
func (m *VectorDBManager) Export() error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	log.Debug().Msgf("Exporting collection %s to %s (compress=%t)", m.collectionName, m.filePath, m.compress)
	err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Reset drops the collection.
func (m *VectorDBManager) Reset() error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed")
}

// Index is one built chromem collection.
type Index struct {
	collection *chromem.Collection
}

func (i *Index) Count() int { return i.collection.Count() }

// Search returns the k chunks most similar to the query embedding. k is
// clamped to the number of indexed chunks.
func (i *Index) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.ScoredChunk, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	k = min(k, i.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	out := make([]models.ScoredChunk, len(results))
	for j, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		idx, _ := strconv.Atoi(r.Metadata[metaIndex])
		out[j] = models.ScoredChunk{
			Chunk: models.Chunk{
				ID:      r.ID,
				Content: r.Content,
				Source:  r.Metadata[metaSource],
				Page:    page,
				Index:   idx,
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}
