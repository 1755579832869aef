package vectorstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerforge-go/internal/model"
)

func records() []model.ChunkRecord {
	return []model.ChunkRecord{
		{ID: "1", Chunk: model.Chunk{Content: "Go developer", Metadata: map[string]any{"source": "cv.pdf"}}, Embedding: []float32{1, 0}, ModelVersion: "mini"},
		{ID: "2", Chunk: model.Chunk{Content: "Kafka pipelines", Metadata: map[string]any{"source": "cv.pdf"}}, Embedding: []float32{0, 1}, ModelVersion: "mini"},
	}
}

func TestPgVectorReplaceRunsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "documents"`).WillReturnResult(sqlmock.NewResult(0, 5))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "documents" (content, metadata, embedding) VALUES ($1, $2, $3)`))
	prep.ExpectExec().WithArgs("Go developer", `{"model_version":"mini","source":"cv.pdf"}`, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("Kafka pipelines", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	backend := NewPgVectorBackend(db, "", "")
	require.NoError(t, backend.Replace(context.Background(), records()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorReplaceRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "documents"`).WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare(`INSERT INTO "documents"`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(errors.New("dimension mismatch"))
	mock.ExpectRollback()

	backend := NewPgVectorBackend(db, "documents", "")
	err = backend.Replace(context.Background(), records())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"content", "metadata", "similarity"}).
		AddRow("Go developer", []byte(`{"source":"cv.pdf","chunk_index":0}`), 0.91).
		AddRow("Kafka pipelines", []byte(`{"source":"cv.pdf","chunk_index":1}`), 0.47)
	mock.ExpectQuery(`SELECT content, metadata, 1 - \(embedding <=> \$1\) AS similarity\s+FROM "documents"\s+WHERE 1 - \(embedding <=> \$1\) >= \$2\s+ORDER BY embedding <=> \$1\s+LIMIT \$3`).
		WithArgs(sqlmock.AnyArg(), 0.4, 6).
		WillReturnRows(rows)

	backend := NewPgVectorBackend(db, "documents", "")
	docs, err := backend.Search(context.Background(), []float32{1, 0}, 0.4, 6)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Go developer", docs[0].Content)
	assert.InDelta(t, 0.91, docs[0].Similarity, 1e-9)
	assert.Equal(t, "cv.pdf", docs[1].Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorSearchWithoutThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`ORDER BY embedding <=> \$1\s+LIMIT \$2`).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows([]string{"content", "metadata", "similarity"}))

	docs, err := NewPgVectorBackend(db, "documents", "").Search(context.Background(), []float32{1}, NoThreshold, 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorSearchViaMatchFunction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT content, metadata, similarity FROM "match_documents"($1, $2, $3)`)).
		WithArgs(sqlmock.AnyArg(), 0.4, 6).
		WillReturnRows(sqlmock.NewRows([]string{"content", "metadata", "similarity"}).AddRow("Go", nil, 0.8))

	docs, err := NewPgVectorBackend(db, "documents", "match_documents").Search(context.Background(), []float32{1}, 0.4, 6)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "documents"[\s\S]*vector\(384\)`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPgVectorBackend(db, "documents", "").EnsureSchema(context.Background(), 384))
	assert.NoError(t, mock.ExpectationsWereMet())
}
