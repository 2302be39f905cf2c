package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGormStore(t *testing.T, vectorEnabled bool) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db, vectorEnabled, nil), mock
}

var chunkRowColumns = []string{"id", "document_id", "filename", "content", "chunk_index", "embedding"}

func TestGormStore_CreateDocument(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	mock.ExpectExec(`INSERT INTO "documents"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.CreateDocument(context.Background(), "guide.pdf", "text", 42)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateChunkWithoutVectorColumn(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	mock.ExpectExec(`INSERT INTO "document_chunks"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.CreateChunk(context.Background(), "doc-1", "hello", 0, []float32{0.5, 0.5})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateChunkFallsBackToJSONEmbedding(t *testing.T) {
	store, mock := newMockGormStore(t, true)

	mock.ExpectExec(`INSERT INTO "document_chunks" .*"embedding_vector"`).
		WillReturnError(errors.New(`type "vector" does not exist`))
	mock.ExpectExec(`INSERT INTO "document_chunks"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := store.CreateChunk(context.Background(), "doc-1", "hello", 0, []float32{0.5, 0.5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateChunkStorageFailure(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	mock.ExpectExec(`INSERT INTO "document_chunks"`).
		WillReturnError(errors.New("connection refused"))

	_, err := store.CreateChunk(context.Background(), "doc-1", "hello", 0, nil)
	assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
}

func TestGormStore_UpdateChunkCount(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	mock.ExpectExec(`UPDATE "documents" SET "chunk_count"`).
		WithArgs(3, "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "documents" SET "chunk_count"`).
		WithArgs(3, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.UpdateChunkCount(context.Background(), "doc-1", 3))

	err := store.UpdateChunkCount(context.Background(), "missing", 3)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_RankByVectorUnsupported(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	_, err := store.RankByVector(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrVectorSearchUnsupported)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_RankByVector(t *testing.T) {
	store, mock := newMockGormStore(t, true)

	rows := sqlmock.NewRows(append(chunkRowColumns, "distance")).
		AddRow("c1", "d1", "guide.pdf", "first", 0, "[1,0]", 0.1).
		AddRow("c2", "d1", "guide.pdf", "second", 1, "[0,1]", 0.6)
	mock.ExpectQuery(`embedding_vector <=> .* AS distance .*ORDER BY distance ASC, dc.chunk_index ASC, dc.id ASC LIMIT`).
		WillReturnRows(rows)

	ranked, err := store.RankByVector(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c1", ranked[0].ID)
	assert.Equal(t, "guide.pdf", ranked[0].Filename)
	assert.InDelta(t, 0.1, ranked[0].Distance, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AllChunksWithVectors(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	rows := sqlmock.NewRows(chunkRowColumns).
		AddRow("c1", "d1", "guide.pdf", "first", 0, "[1,0]")
	mock.ExpectQuery(`FROM document_chunks dc JOIN documents d .*dc.embedding IS NOT NULL`).
		WillReturnRows(rows)

	chunks, err := store.AllChunksWithVectors(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "[1,0]", chunks[0].Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ChunksMatchingSubstring(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	rows := sqlmock.NewRows(chunkRowColumns).
		AddRow("c1", "d1", "guide.pdf", "100% match", 2, nil)
	mock.ExpectQuery(`LOWER\(dc.content\) LIKE LOWER\(\$1\) ORDER BY dc.chunk_index ASC, dc.id ASC`).
		WillReturnRows(rows)

	chunks, err := store.ChunksMatchingSubstring(context.Background(), "100%", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].ChunkIndex)
	assert.Empty(t, chunks[0].Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListDocumentsFailure(t *testing.T) {
	store, mock := newMockGormStore(t, false)

	mock.ExpectQuery(`SELECT \* FROM "documents" ORDER BY upload_date DESC`).
		WillReturnError(errors.New("timeout"))

	_, err := store.ListDocuments(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% a\_b c\\d`, escapeLike(`100% a_b c\d`))
}
