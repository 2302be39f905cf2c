package knowledge

import (
	"errors"
	"sync"

	apperrors "github.com/aihub/docsearch/internal/errors"
)

// readiness 模型能力的公共部分
type readiness interface {
	Ready() bool
}

// sharedHandle 进程内只初始化一次的模型句柄，初始化失败会一直保留
type sharedHandle[T readiness] struct {
	capability string
	init       func() (T, error)

	once  sync.Once
	value T
	err   error
}

func (h *sharedHandle[T]) get() (T, error) {
	h.once.Do(func() {
		if h.init == nil {
			h.err = apperrors.NewCapabilityUnavailableError(h.capability, errors.New("no initializer"))
			return
		}
		value, err := h.init()
		if err != nil {
			h.err = apperrors.NewCapabilityUnavailableError(h.capability, err)
			return
		}
		if any(value) == nil || !value.Ready() {
			h.err = apperrors.NewCapabilityUnavailableError(h.capability, errors.New("provider not ready"))
			return
		}
		h.value = value
	})
	return h.value, h.err
}

// SharedEmbedder 共享的向量模型句柄
type SharedEmbedder struct {
	handle sharedHandle[Embedder]
}

// NewSharedEmbedder 创建共享向量模型句柄，init 在首次使用时执行
func NewSharedEmbedder(init func() (Embedder, error)) *SharedEmbedder {
	return &SharedEmbedder{handle: sharedHandle[Embedder]{capability: "embedding model", init: init}}
}

// StaticEmbedder 包装已初始化的 Embedder
func StaticEmbedder(e Embedder) *SharedEmbedder {
	return NewSharedEmbedder(func() (Embedder, error) { return e, nil })
}

// Get 获取模型，失败时返回 CapabilityUnavailable
func (s *SharedEmbedder) Get() (Embedder, error) {
	return s.handle.get()
}

// SharedGenerator 共享的文本生成模型句柄
type SharedGenerator struct {
	handle sharedHandle[Generator]
}

func NewSharedGenerator(init func() (Generator, error)) *SharedGenerator {
	return &SharedGenerator{handle: sharedHandle[Generator]{capability: "generation model", init: init}}
}

func StaticGenerator(g Generator) *SharedGenerator {
	return NewSharedGenerator(func() (Generator, error) { return g, nil })
}

func (s *SharedGenerator) Get() (Generator, error) {
	return s.handle.get()
}
