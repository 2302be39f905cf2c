package knowledge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var retrievalTexts = []string{
	"Vector search ranks chunks by vector distance",
	"The database stores every pdf chunk",
	"Search falls back to database substring search",
	"Vector math",
}

func newTestEmbedder() *BatchEmbedder {
	model := newKeywordEmbedder("vector", "search", "database", "pdf")
	return NewBatchEmbedder(StaticEmbedder(model), 2, FailurePolicyFail, nil)
}

func seedChunks(t *testing.T, store Store, embedder *BatchEmbedder, texts []string) []string {
	t.Helper()
	ctx := context.Background()

	docID, err := store.CreateDocument(ctx, "guide.pdf", "full text", 1024)
	require.NoError(t, err)

	vectors, err := embedder.Embed(ctx, texts)
	require.NoError(t, err)

	ids := make([]string, len(texts))
	for i, text := range texts {
		ids[i], err = store.CreateChunk(ctx, docID, text, i, vectors[i])
		require.NoError(t, err)
	}
	return ids
}

func resultIDs(results []SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	return ids
}

func TestRetriever_VectorTier(t *testing.T) {
	store := NewMemoryStore(true)
	embedder := newTestEmbedder()
	ids := seedChunks(t, store, embedder, retrievalTexts)

	resp, err := NewRetriever(store, embedder, nil).Search(context.Background(), "vector search", 10)
	require.NoError(t, err)

	assert.Equal(t, TierVector, resp.Tier)
	assert.False(t, resp.Degraded)
	assert.Equal(t, []string{ids[0], ids[3], ids[2], ids[1]}, resultIDs(resp.Results))
	assert.InDelta(t, 3/(2.2360679775*1.41421356237), resp.Results[0].Score, 1e-5)
	assert.Equal(t, "guide.pdf", resp.Results[0].Filename)
	for _, r := range resp.Results {
		assert.Equal(t, TierVector, r.Tier)
	}
}

func TestRetriever_CosineTierMatchesVectorOrdering(t *testing.T) {
	store := NewMemoryStore(true)
	embedder := newTestEmbedder()
	seedChunks(t, store, embedder, retrievalTexts)
	retriever := NewRetriever(store, embedder, nil)

	native, err := retriever.Search(context.Background(), "vector search", 3)
	require.NoError(t, err)
	require.Equal(t, TierVector, native.Tier)

	store.SetVectorSearch(false)

	fallback, err := retriever.Search(context.Background(), "vector search", 3)
	require.NoError(t, err)

	assert.Equal(t, TierCosine, fallback.Tier)
	assert.True(t, fallback.Degraded)
	assert.Equal(t, resultIDs(native.Results), resultIDs(fallback.Results))
	for i := range native.Results {
		assert.InDelta(t, native.Results[i].Score, fallback.Results[i].Score, 1e-5)
	}
}

func TestRetriever_CosineTierSkipsMalformedVectors(t *testing.T) {
	store := NewMemoryStore(false)
	embedder := newTestEmbedder()
	ids := seedChunks(t, store, embedder, retrievalTexts[:1])

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	store.PutRawChunk(docs[0].ID, "broken vector chunk", 5, "not-json")
	store.PutRawChunk(docs[0].ID, "short vector chunk", 6, "[1, 2]")

	resp, err := NewRetriever(store, embedder, nil).Search(context.Background(), "vector", 10)
	require.NoError(t, err)

	assert.Equal(t, TierCosine, resp.Tier)
	assert.Equal(t, []string{ids[0]}, resultIDs(resp.Results))
}

func TestRetriever_LexicalWhenEmbeddingUnavailable(t *testing.T) {
	store := NewMemoryStore(true)
	seedChunks(t, store, newTestEmbedder(), []string{
		"alpha paragraph",
		"Contains the KEYWORD in caps",
		"nothing here",
		"another keyword mention",
	})

	broken := NewBatchEmbedder(NewSharedEmbedder(func() (Embedder, error) {
		return nil, errors.New("model missing")
	}), 10, FailurePolicyFail, nil)

	resp, err := NewRetriever(store, broken, nil).Search(context.Background(), "keyword", 10)
	require.NoError(t, err)

	assert.Equal(t, TierLexical, resp.Tier)
	assert.True(t, resp.Degraded)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].ChunkIndex)
	assert.Equal(t, 3, resp.Results[1].ChunkIndex)
	for _, r := range resp.Results {
		assert.Equal(t, LexicalScore, r.Score)
	}
}

func TestRetriever_LexicalWhenNoCandidates(t *testing.T) {
	store := NewMemoryStore(false)
	docID, err := store.CreateDocument(context.Background(), "plain.pdf", "text", 10)
	require.NoError(t, err)
	_, err = store.CreateChunk(context.Background(), docID, "Vector search without stored vectors", 0, nil)
	require.NoError(t, err)

	resp, err := NewRetriever(store, newTestEmbedder(), nil).Search(context.Background(), "vector search", 5)
	require.NoError(t, err)

	assert.Equal(t, TierLexical, resp.Tier)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "plain.pdf", resp.Results[0].Filename)
}

func TestRetriever_ZeroResultsIsNotAnError(t *testing.T) {
	store := NewMemoryStore(false)

	resp, err := NewRetriever(store, newTestEmbedder(), nil).Search(context.Background(), "unknown words", 5)
	require.NoError(t, err)

	assert.Equal(t, TierLexical, resp.Tier)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestRetriever_RejectsEmptyQuery(t *testing.T) {
	store := NewMemoryStore(true)

	_, err := NewRetriever(store, newTestEmbedder(), nil).Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestRetriever_DefaultLimit(t *testing.T) {
	store := NewMemoryStore(true)
	embedder := newTestEmbedder()

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("vector note %d", i)
	}
	seedChunks(t, store, embedder, texts)

	resp, err := NewRetriever(store, embedder, nil).Search(context.Background(), "vector", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Results, DefaultSearchLimit)
}

func TestRetriever_TiesBrokenByChunkIndex(t *testing.T) {
	store := NewMemoryStore(false)
	embedder := newTestEmbedder()
	ctx := context.Background()

	docID, err := store.CreateDocument(ctx, "ties.pdf", "text", 10)
	require.NoError(t, err)
	vector, err := embedder.EmbedOne(ctx, "vector search")
	require.NoError(t, err)
	for _, index := range []int{3, 1, 2, 0} {
		_, err := store.CreateChunk(ctx, docID, "vector search", index, vector)
		require.NoError(t, err)
	}

	resp, err := NewRetriever(store, embedder, nil).Search(ctx, "vector search", 10)
	require.NoError(t, err)

	require.Len(t, resp.Results, 4)
	for i, r := range resp.Results {
		assert.Equal(t, i, r.ChunkIndex)
	}
}

// failingLexicalStore 子串查询失败的存储
type failingLexicalStore struct {
	*MemoryStore
}

func (s failingLexicalStore) ChunksMatchingSubstring(ctx context.Context, text string, limit int) ([]StoredChunk, error) {
	return nil, errors.New("connection reset")
}

func TestRetriever_LexicalStorageFailure(t *testing.T) {
	store := failingLexicalStore{MemoryStore: NewMemoryStore(false)}

	_, err := NewRetriever(store, newTestEmbedder(), nil).Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
}

func TestRetriever_DuplicateDocumentsRankIdenticallyAcrossTiers(t *testing.T) {
	store := NewMemoryStore(true)
	embedder := newTestEmbedder()
	ingestor := NewIngestor(store, NewChunker(500, 50), embedder, 2, nil)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := ingestor.Ingest(ctx, "copy.pdf", "Vector search guide.", 20)
		require.NoError(t, err)
	}
	retriever := NewRetriever(store, embedder, nil)

	native, err := retriever.Search(ctx, "vector", 3)
	require.NoError(t, err)
	require.Equal(t, TierVector, native.Tier)
	require.Len(t, native.Results, 3)

	store.vectorEnabled = false
	cosine, err := retriever.Search(ctx, "vector", 3)
	require.NoError(t, err)
	require.Equal(t, TierCosine, cosine.Tier)

	assert.Equal(t, resultIDs(native.Results), resultIDs(cosine.Results))
	ids := resultIDs(native.Results)
	assert.True(t, ids[0] < ids[1] && ids[1] < ids[2])
}
