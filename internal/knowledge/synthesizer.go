package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
)

const (
	DefaultMaxPromptLength = 1000

	answerMarker       = "Answer:"
	promptSuffix       = "\n\n" + answerMarker
	truncationMarker   = "..."
	fallbackHeader     = "Based on the retrieved documents, here are the most relevant excerpts:\n\n"
	fallbackPassages   = 3
	fallbackExcerptLen = 200
)

// Synthesizer 基于检索到的上下文生成回答
type Synthesizer struct {
	generator       *SharedGenerator
	maxPromptLength int
	logger          *zap.Logger
}

// NewSynthesizer 创建回答生成器
func NewSynthesizer(generator *SharedGenerator, maxPromptLength int, log *zap.Logger) *Synthesizer {
	if maxPromptLength <= 0 {
		maxPromptLength = DefaultMaxPromptLength
	}
	return &Synthesizer{
		generator:       generator,
		maxPromptLength: maxPromptLength,
		logger:          logger.OrNop(log),
	}
}

// GenerateAnswer 生成回答；模型不可用或输出异常时退化为摘录式回答
func (s *Synthesizer) GenerateAnswer(ctx context.Context, query string, passages []string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", apperrors.NewInvalidArgumentError("query cannot be empty")
	}
	if len(passages) == 0 {
		return "", apperrors.NewInvalidArgumentError("context cannot be empty")
	}

	prompt := BuildPrompt(query, passages, s.maxPromptLength)

	answer, err := s.generate(ctx, prompt)
	if err != nil {
		answerFallbackCounter.Inc()
		s.logger.Warn("Answer generation failed, using extractive fallback",
			zap.Int("passages", len(passages)),
			zap.Error(err))
		return ExtractiveSummary(passages), nil
	}
	return answer, nil
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", apperrors.NewCapabilityUnavailableError("generation model", errors.New("not configured"))
	}
	model, err := s.generator.Get()
	if err != nil {
		return "", err
	}

	generated, err := model.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return extractAnswer(prompt, generated)
}

// BuildPrompt 组装提示词，超长时从上下文尾部截断并保留"Answer:"结尾
func BuildPrompt(query string, passages []string, maxLength int) string {
	head := "Based on the following context, answer the question: \"" + query + "\"\n\nContext:\n"
	body := head + strings.Join(passages, "\n\n")

	prompt := body + promptSuffix
	if maxLength <= 0 || utf8.RuneCountInString(prompt) <= maxLength {
		return prompt
	}

	keep := maxLength - utf8.RuneCountInString(promptSuffix) - utf8.RuneCountInString(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	return truncateRunes(body, keep) + truncationMarker + promptSuffix
}

// extractAnswer 取出提示词之后"Answer:"标记后的文本
func extractAnswer(prompt, generated string) (string, error) {
	var answer string
	if strings.HasPrefix(generated, prompt) {
		answer = generated[len(prompt):]
	} else {
		idx := strings.LastIndex(generated, answerMarker)
		if idx < 0 {
			return "", errors.New("answer marker not found")
		}
		answer = generated[idx+len(answerMarker):]
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("empty answer")
	}
	return answer, nil
}

// ExtractiveSummary 取前3段上下文，每段截取前200个字符
func ExtractiveSummary(passages []string) string {
	n := len(passages)
	if n > fallbackPassages {
		n = fallbackPassages
	}

	excerpts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		excerpts = append(excerpts, fmt.Sprintf("%d. %s%s", i+1, truncateRunes(passages[i], fallbackExcerptLen), truncationMarker))
	}
	return fallbackHeader + strings.Join(excerpts, "\n\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
