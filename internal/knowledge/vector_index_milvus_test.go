package knowledge

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockMilvusClient 模拟Milvus客户端，未覆盖的方法调用会panic
type MockMilvusClient struct {
	client.Client
	mock.Mock
}

func (m *MockMilvusClient) HasCollection(ctx context.Context, collName string) (bool, error) {
	args := m.Called(ctx, collName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMilvusClient) LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error {
	args := m.Called(ctx, collName, async)
	return args.Error(0)
}

func (m *MockMilvusClient) Search(ctx context.Context, collName string, partitions []string,
	expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType,
	topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	args := m.Called(ctx, collName, outputFields, vectorField, metricType, topK)
	var results []client.SearchResult
	if v := args.Get(0); v != nil {
		results = v.([]client.SearchResult)
	}
	return results, args.Error(1)
}

func newMockedMilvusIndex(t *testing.T) (*MockMilvusClient, *MilvusVectorIndex) {
	t.Helper()
	milvusClient := &MockMilvusClient{}
	milvusClient.On("HasCollection", mock.Anything, "chunks_test").Return(true, nil).Once()
	milvusClient.On("LoadCollection", mock.Anything, "chunks_test", false).Return(nil).Once()
	return milvusClient, &MilvusVectorIndex{
		client:     milvusClient,
		collection: "chunks_test",
		dimensions: 3,
		logger:     zap.NewNop(),
	}
}

func TestMilvusVectorIndex_SearchMapsColumns(t *testing.T) {
	milvusClient, index := newMockedMilvusIndex(t)
	milvusClient.On("Search", mock.Anything, "chunks_test",
		[]string{milvusFieldDocumentID, milvusFieldFilename, milvusFieldContent, milvusFieldChunkIndex},
		milvusFieldVector, entity.COSINE, 2,
	).Return([]client.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar(milvusFieldChunkID, []string{"c1", "c2"}),
		Fields: client.ResultSet{
			entity.NewColumnInt64(milvusFieldChunkIndex, []int64{0, 7}),
			entity.NewColumnVarChar(milvusFieldContent, []string{"first chunk", "second chunk"}),
			entity.NewColumnVarChar(milvusFieldFilename, []string{"a.pdf", "b.txt"}),
			entity.NewColumnVarChar(milvusFieldDocumentID, []string{"d1", "d2"}),
		},
		Scores: []float32{0.9, 0.25},
	}}, nil)

	ranked, err := index.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, StoredChunk{ID: "c1", DocumentID: "d1", Filename: "a.pdf", Content: "first chunk", ChunkIndex: 0}, ranked[0].StoredChunk)
	assert.Equal(t, StoredChunk{ID: "c2", DocumentID: "d2", Filename: "b.txt", Content: "second chunk", ChunkIndex: 7}, ranked[1].StoredChunk)
	assert.InDelta(t, 0.1, ranked[0].Distance, 1e-6)
	assert.InDelta(t, 0.75, ranked[1].Distance, 1e-6)
	milvusClient.AssertExpectations(t)
}

func TestMilvusVectorIndex_SearchWithoutScoresUsesMaxDistance(t *testing.T) {
	milvusClient, index := newMockedMilvusIndex(t)
	milvusClient.On("Search", mock.Anything, "chunks_test", mock.Anything, milvusFieldVector, entity.COSINE, DefaultSearchLimit).
		Return([]client.SearchResult{{
			ResultCount: 1,
			IDs:         entity.NewColumnVarChar(milvusFieldChunkID, []string{"c1"}),
		}}, nil)

	ranked, err := index.Search(context.Background(), []float32{0, 1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "c1", ranked[0].ID)
	assert.Empty(t, ranked[0].Content)
	assert.Equal(t, 1.0, ranked[0].Distance)
}

func TestMilvusVectorIndex_SearchEmptyResult(t *testing.T) {
	milvusClient, index := newMockedMilvusIndex(t)
	milvusClient.On("Search", mock.Anything, "chunks_test", mock.Anything, milvusFieldVector, entity.COSINE, 5).
		Return(nil, nil)

	ranked, err := index.Search(context.Background(), []float32{0, 0, 1}, 5)
	require.NoError(t, err)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestMilvusVectorIndex_SearchErrors(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		milvusClient := &MockMilvusClient{}
		index := &MilvusVectorIndex{client: milvusClient, collection: "chunks_test", dimensions: 3, logger: zap.NewNop()}

		_, err := index.Search(context.Background(), []float32{1, 0}, 5)
		assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)
		milvusClient.AssertNotCalled(t, "HasCollection", mock.Anything, mock.Anything)
	})

	t.Run("result error", func(t *testing.T) {
		milvusClient, index := newMockedMilvusIndex(t)
		milvusClient.On("Search", mock.Anything, "chunks_test", mock.Anything, milvusFieldVector, entity.COSINE, 5).
			Return([]client.SearchResult{{Err: errors.New("segment not loaded")}}, nil)

		_, err := index.Search(context.Background(), []float32{1, 0, 0}, 5)
		assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
	})

	t.Run("collection check fails", func(t *testing.T) {
		milvusClient := &MockMilvusClient{}
		milvusClient.On("HasCollection", mock.Anything, "chunks_test").Return(false, errors.New("connection refused"))
		index := &MilvusVectorIndex{client: milvusClient, collection: "chunks_test", dimensions: 3, logger: zap.NewNop()}

		_, err := index.Search(context.Background(), []float32{1, 0, 0}, 5)
		assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
	})
}
