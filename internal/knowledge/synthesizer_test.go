package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("What is RAG?", []string{"first passage", "second passage"}, 1000)

	expected := "Based on the following context, answer the question: \"What is RAG?\"\n\n" +
		"Context:\nfirst passage\n\nsecond passage\n\nAnswer:"
	assert.Equal(t, expected, prompt)
}

func TestBuildPrompt_TruncatesTrailingContext(t *testing.T) {
	passages := []string{strings.Repeat("a", 600), strings.Repeat("b", 600)}

	prompt := BuildPrompt("q", passages, 1000)

	assert.Equal(t, 1000, utf8.RuneCountInString(prompt))
	assert.True(t, strings.HasSuffix(prompt, "...\n\nAnswer:"))
	assert.Contains(t, prompt, strings.Repeat("a", 600))
	assert.True(t, strings.HasPrefix(prompt, "Based on the following context"))
}

func TestSynthesizer_ExtractsAnswer(t *testing.T) {
	passages := []string{"RAG combines retrieval and generation. Answer: quoted text."}
	prompt := BuildPrompt("What is RAG?", passages, DefaultMaxPromptLength)

	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, prompt).
		Return(prompt+"  Retrieval augmented generation.  ", nil)

	synth := NewSynthesizer(StaticGenerator(generator), 0, nil)

	answer, err := synth.GenerateAnswer(context.Background(), "What is RAG?", passages)
	require.NoError(t, err)
	assert.Equal(t, "Retrieval augmented generation.", answer)
	generator.AssertExpectations(t)
}

func TestSynthesizer_ContextContainingMarker(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything).
		Return("Question: x\nAnswer: not this\nAnswer: the real one", nil)

	synth := NewSynthesizer(StaticGenerator(generator), 0, nil)

	answer, err := synth.GenerateAnswer(context.Background(), "x", []string{"passage"})
	require.NoError(t, err)
	assert.Equal(t, "the real one", answer)
}

func TestSynthesizer_RejectsInvalidInput(t *testing.T) {
	synth := NewSynthesizer(StaticGenerator(&NoopGenerator{}), 0, nil)

	_, err := synth.GenerateAnswer(context.Background(), "  ", []string{"passage"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = synth.GenerateAnswer(context.Background(), "question", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestSynthesizer_FallbackOnFailures(t *testing.T) {
	passages := []string{strings.Repeat("x", 250), "short passage", "third", "fourth"}
	expected := "Based on the retrieved documents, here are the most relevant excerpts:\n\n" +
		"1. " + strings.Repeat("x", 200) + "...\n\n" +
		"2. short passage...\n\n" +
		"3. third..."

	failing := new(MockGenerator)
	failing.On("Ready").Return(true)
	failing.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model crashed"))

	noMarker := new(MockGenerator)
	noMarker.On("Ready").Return(true)
	noMarker.On("Generate", mock.Anything, mock.Anything).Return("no marker here", nil)

	emptyAnswer := new(MockGenerator)
	emptyAnswer.On("Ready").Return(true)
	emptyAnswer.On("Generate", mock.Anything, mock.Anything).Return("Answer:   ", nil)

	cases := map[string]*SharedGenerator{
		"unavailable":  StaticGenerator(&NoopGenerator{}),
		"error":        StaticGenerator(failing),
		"no marker":    StaticGenerator(noMarker),
		"empty answer": StaticGenerator(emptyAnswer),
		"nil handle":   nil,
	}

	for name, generator := range cases {
		t.Run(name, func(t *testing.T) {
			synth := NewSynthesizer(generator, 0, nil)

			answer, err := synth.GenerateAnswer(context.Background(), "question", passages)
			require.NoError(t, err)
			assert.Equal(t, expected, answer)
		})
	}
}

func TestExtractiveSummary_MultibyteSafe(t *testing.T) {
	summary := ExtractiveSummary([]string{strings.Repeat("检索", 150)})

	assert.True(t, utf8.ValidString(summary))
	assert.Contains(t, summary, "1. "+strings.Repeat("检索", 100)+"...")
}
