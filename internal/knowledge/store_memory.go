package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/google/uuid"
)

// MemoryStore 进程内存储，用于本地运行和测试
type MemoryStore struct {
	mu            sync.RWMutex
	vectorEnabled bool
	documents     map[string]*Document
	chunks        []memoryChunk
	now           func() time.Time
}

type memoryChunk struct {
	StoredChunk
	vector []float32
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(vectorEnabled bool) *MemoryStore {
	return &MemoryStore{
		vectorEnabled: vectorEnabled,
		documents:     make(map[string]*Document),
		now:           time.Now,
	}
}

// SetVectorSearch 开关原生向量检索能力
func (s *MemoryStore) SetVectorSearch(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorEnabled = enabled
}

func (s *MemoryStore) CreateDocument(ctx context.Context, filename, text string, byteSize int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.documents[id] = &Document{
		ID:         id,
		Filename:   filename,
		Content:    text,
		UploadDate: s.now(),
		FileSize:   byteSize,
	}
	return id, nil
}

func (s *MemoryStore) CreateChunk(ctx context.Context, documentID, text string, index int, vector []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return "", apperrors.NewNotFoundError("document " + documentID)
	}

	chunk := memoryChunk{
		StoredChunk: StoredChunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Filename:   doc.Filename,
			Content:    text,
			ChunkIndex: index,
		},
	}
	if len(vector) > 0 {
		encoded, err := EncodeVector(vector)
		if err != nil {
			return "", apperrors.NewInvalidArgumentError("invalid embedding").WithCause(err)
		}
		chunk.Embedding = encoded
		chunk.vector = append([]float32(nil), vector...)
	}

	s.chunks = append(s.chunks, chunk)
	return chunk.ID, nil
}

func (s *MemoryStore) UpdateChunkCount(ctx context.Context, documentID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return apperrors.NewNotFoundError("document " + documentID)
	}
	doc.ChunkCount = count
	return nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, *doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].UploadDate.Equal(docs[j].UploadDate) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadDate.After(docs[j].UploadDate)
	})
	return docs, nil
}

func (s *MemoryStore) RankByVector(ctx context.Context, vector []float32, limit int) ([]RankedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.vectorEnabled {
		return nil, ErrVectorSearchUnsupported
	}

	ranked := make([]RankedChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if len(chunk.vector) == 0 {
			continue
		}
		similarity, err := CosineSimilarity(vector, chunk.vector)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedChunk{StoredChunk: chunk.StoredChunk, Distance: 1 - similarity})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return chunkBefore(ranked[i].StoredChunk, ranked[j].StoredChunk)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *MemoryStore) AllChunksWithVectors(ctx context.Context) ([]StoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]StoredChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if chunk.Embedding != "" {
			chunks = append(chunks, chunk.StoredChunk)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) ChunksMatchingSubstring(ctx context.Context, text string, limit int) ([]StoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(text)
	var matches []StoredChunk
	for _, chunk := range s.chunks {
		if strings.Contains(strings.ToLower(chunk.Content), needle) {
			matches = append(matches, chunk.StoredChunk)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return chunkBefore(matches[i], matches[j])
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// chunkBefore 分块序号升序，序号相同按ID升序，与数据库排序一致
func chunkBefore(a, b StoredChunk) bool {
	if a.ChunkIndex != b.ChunkIndex {
		return a.ChunkIndex < b.ChunkIndex
	}
	return a.ID < b.ID
}
