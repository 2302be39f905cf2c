package knowledge

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Generator 文本生成接口，返回的文本包含提示词本身
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ready() bool
}

// NoopGenerator 未配置生成模型时的占位实现
type NoopGenerator struct{}

func (n *NoopGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("generation provider not configured")
}

func (n *NoopGenerator) Ready() bool {
	return false
}

// GenerationOptions 生成参数
type GenerationOptions struct {
	Model        string
	MaxNewTokens int
	Temperature  float64
}

// OpenAIGenerator 使用OpenAI Completion API，开启echo以便按"Answer:"标记截取
type OpenAIGenerator struct {
	client  *openai.Client
	options GenerationOptions
}

// NewOpenAIGenerator 创建生成模型，未配置API Key时返回NoopGenerator
func NewOpenAIGenerator(cfg OpenAIConfig, options GenerationOptions) Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &NoopGenerator{}
	}
	if options.Model == "" {
		options.Model = openai.GPT3Dot5TurboInstruct
	}
	if options.MaxNewTokens <= 0 {
		options.MaxNewTokens = 150
	}
	return &OpenAIGenerator{
		client:  newOpenAIClient(cfg),
		options: options,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       g.options.Model,
		Prompt:      prompt,
		MaxTokens:   g.options.MaxNewTokens,
		Temperature: float32(g.options.Temperature),
		Echo:        true,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response empty")
	}
	return resp.Choices[0].Text, nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.client != nil
}
