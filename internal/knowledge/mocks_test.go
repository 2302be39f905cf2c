package knowledge

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEmbedder 模拟向量模型
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	var vector []float32
	if v := args.Get(0); v != nil {
		vector = v.([]float32)
	}
	return vector, args.Error(1)
}

func (m *MockEmbedder) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockEmbedder) Ready() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockGenerator 模拟文本生成模型
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Ready() bool {
	args := m.Called()
	return args.Bool(0)
}

// keywordEmbedder 按关键词出现次数生成确定性向量
type keywordEmbedder struct {
	keywords []string
	failOn   map[string]error

	mu    sync.Mutex
	calls int
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords, failOn: map[string]error{}}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if err, ok := e.failOn[text]; ok {
		return nil, err
	}

	lower := strings.ToLower(text)
	vector := make([]float32, len(e.keywords))
	for i, keyword := range e.keywords {
		vector[i] = float32(strings.Count(lower, keyword))
	}
	return vector, nil
}

func (e *keywordEmbedder) Dimensions() int {
	return len(e.keywords)
}

func (e *keywordEmbedder) Ready() bool {
	return true
}

func (e *keywordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// PutRawChunk 直接写入带任意JSON向量的分块
func (s *MemoryStore) PutRawChunk(documentID, text string, index int, rawEmbedding string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filename string
	if doc, ok := s.documents[documentID]; ok {
		filename = doc.Filename
	}
	chunk := memoryChunk{StoredChunk: StoredChunk{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Filename:   filename,
		Content:    text,
		ChunkIndex: index,
		Embedding:  rawEmbedding,
	}}
	s.chunks = append(s.chunks, chunk)
	return chunk.ID
}
