package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkTokens   = 500
	DefaultOverlapTokens = 50
)

// Chunker 按句子切分并按token预算聚合的分块器
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

// NewChunker 创建分块器
func NewChunker(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
	}
}

// EstimateTokens 粗略估算token数：每4个字符约1个token
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Chunk 将文本切分为多个chunk，单个超长句子保持完整
func (c *Chunker) Chunk(text string) []string {
	var (
		chunks        []string
		current       string
		currentTokens int
	)

	for _, sentence := range splitSentences(text) {
		sentenceTokens := EstimateTokens(sentence)

		if currentTokens+sentenceTokens > c.maxTokens && current != "" {
			finished := strings.TrimSpace(current)
			if finished != "" {
				chunks = append(chunks, finished)
			}

			current = overlapTail(finished, c.overlapTokens) + " " + sentence
			currentTokens = EstimateTokens(current)
			continue
		}

		if current != "" {
			current += " "
		}
		current += sentence
		currentTokens += sentenceTokens
	}

	if last := strings.TrimSpace(current); last != "" {
		chunks = append(chunks, last)
	}

	return chunks
}

// splitSentences 以 . ! ? 的连续出现为分隔符切分句子，丢弃空白句子
func splitSentences(text string) []string {
	pieces := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// overlapTail 取已完成chunk末尾的 ceil(overlapTokens/4) 个单词
func overlapTail(text string, overlapTokens int) string {
	words := strings.Fields(text)
	n := (overlapTokens + 3) / 4
	if n <= 0 || len(words) == 0 {
		return ""
	}
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[len(words)-n:], " ")
}

// normalizeWhitespace 将连续空白折叠为单个空格
func normalizeWhitespace(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	var prevSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}
