package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheme-research/internal/config"
	"scheme-research/internal/models"
)

func TestToRows(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "chunk-00000", Content: "a", Source: "s", Page: 2, Index: 0},
		{ID: "chunk-00001", Content: "b", Source: "s", Page: 2, Index: 1},
	}

	rows, err := toRows(chunks, [][]float32{{1, 2}, {3, 4}}, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "chunk-00001", rows[1].ChunkID)
	assert.Equal(t, []float32{3, 4}, rows[1].Embedding.Slice())
	v, err := rows[1].Embedding.Value()
	require.NoError(t, err)
	assert.Equal(t, "[3,4]", v)
	assert.Equal(t, 2, rows[0].Page)

	_, err = toRows(chunks, [][]float32{{1, 2}}, 2)
	assert.Error(t, err)

	_, err = toRows(chunks, [][]float32{{1, 2}, {3}}, 2)
	assert.Error(t, err)

	_, err = toRows(nil, nil, 2)
	assert.Error(t, err)
}

func TestConnectDB_Validation(t *testing.T) {
	_, err := ConnectDB(config.DatabaseConfig{Driver: "pgdriver"})
	assert.Error(t, err)

	_, err = ConnectDB(config.DatabaseConfig{Driver: "mysql", URL: "x"})
	assert.Error(t, err)

	sqldb, err := ConnectDB(config.DatabaseConfig{Driver: "pq", URL: "postgres://localhost/scheme?sslmode=disable"})
	require.NoError(t, err)
	assert.NoError(t, sqldb.Close())
}
