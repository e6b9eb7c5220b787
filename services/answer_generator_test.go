package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"skyquery-bot/internal/ai"

	"github.com/stretchr/testify/assert"
)

type fakeCompleter struct {
	answer   string
	err      error
	prompt   string
	deadline bool
	block    bool
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	_, f.deadline = ctx.Deadline()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("What is Oceansat-3?", "Oceansat-3 is a satellite")

	assert.True(t, strings.HasPrefix(prompt, "You are a helpful AI assistant with expertise in Indian satellite data and MOSDAC services."))
	assert.Contains(t, prompt, "---\nOceansat-3 is a satellite\n---")
	assert.True(t, strings.HasSuffix(prompt, "Q: What is Oceansat-3?\nA:"))
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("trims the completion", func(t *testing.T) {
		fc := &fakeCompleter{answer: "  It is an ocean observation satellite.\n"}
		g := NewAnswerGenerator(fc, time.Second)

		assert.Equal(t, "It is an ocean observation satellite.", g.Generate(ctx, "q", "c"))
		assert.Equal(t, BuildPrompt("q", "c"), fc.prompt)
		assert.True(t, fc.deadline)
	})

	t.Run("failure becomes answer text", func(t *testing.T) {
		g := NewAnswerGenerator(&fakeCompleter{err: ai.ErrRateLimited}, time.Second)

		assert.Equal(t, "❌ Gemini failed to answer: gemini rate limit exceeded", g.Generate(ctx, "q", "c"))
	})

	t.Run("timeout", func(t *testing.T) {
		g := NewAnswerGenerator(&fakeCompleter{block: true}, 10*time.Millisecond)

		got := g.Generate(ctx, "q", "c")
		assert.Equal(t, GenerationFailure(context.DeadlineExceeded), got)
	})

	t.Run("missing completer", func(t *testing.T) {
		g := NewAnswerGenerator(nil, time.Second)

		assert.Equal(t, GenerationFailure(ai.ErrMissingAPIKey), g.Generate(ctx, "q", "c"))
	})

	t.Run("no timeout configured", func(t *testing.T) {
		fc := &fakeCompleter{answer: "ok"}
		g := NewAnswerGenerator(fc, 0)

		assert.Equal(t, "ok", g.Generate(ctx, "q", "c"))
		assert.False(t, fc.deadline)
	})
}

func TestGenerationFailureWrapsMessage(t *testing.T) {
	assert.Equal(t, "❌ Gemini failed to answer: boom", GenerationFailure(errors.New("boom")))
}
