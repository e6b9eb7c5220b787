package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	resp   *genai.GenerateContentResponse
	err    error
	calls  int
	prompt string
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	if len(parts) > 0 {
		if text, ok := parts[0].(genai.Text); ok {
			f.prompt = string(text)
		}
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: content}},
		UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 42},
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "gemini-1.5-flash", "free", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("joins parts and trims", func(t *testing.T) {
		model := &fakeModel{resp: textResponse("  Oceansat-3 is ", "an ocean satellite.\n")}
		gc := newGeminiClient(model, "test-model", "tier2", nil)

		text, err := gc.Complete(ctx, "Q: what is oceansat-3")
		require.NoError(t, err)
		assert.Equal(t, "Oceansat-3 is an ocean satellite.", text)
		assert.Equal(t, "Q: what is oceansat-3", model.prompt)

		requests, tokens := gc.Usage()
		assert.Equal(t, 1, requests)
		assert.Equal(t, 42, tokens)
	})

	t.Run("empty candidates", func(t *testing.T) {
		gc := newGeminiClient(&fakeModel{resp: &genai.GenerateContentResponse{}}, "test-model", "tier2", nil)

		_, err := gc.Complete(ctx, "prompt")
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("upstream error is returned unchanged", func(t *testing.T) {
		upstream := errors.New("googleapi: Error 500")
		gc := newGeminiClient(&fakeModel{err: upstream}, "test-model", "tier2", nil)

		_, err := gc.Complete(ctx, "prompt")
		assert.ErrorIs(t, err, upstream)
	})
}

func TestCompleteCircuitBreakerOpens(t *testing.T) {
	model := &fakeModel{err: errors.New("unavailable")}
	gc := newGeminiClient(model, "test-model", "tier2", nil)

	for i := 0; i < 3; i++ {
		_, err := gc.Complete(context.Background(), "prompt")
		require.Error(t, err)
	}

	_, err := gc.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, model.calls, "open breaker does not reach the model")
}

func TestCompleteRateLimited(t *testing.T) {
	model := &fakeModel{resp: textResponse("ok")}
	// free tier allows a burst of one request
	gc := newGeminiClient(model, "test-model", "free", nil)

	_, err := gc.Complete(context.Background(), "prompt")
	require.NoError(t, err)

	_, err = gc.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, model.calls)
}

func TestTokenCounter(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tc := NewTokenCounter(RateLimits{RPM: 2, TPM: 100, RPD: 3})
	tc.now = func() time.Time { return now }

	assert.True(t, tc.CanConsume(50, 1))
	tc.RecordUsage(50, 1)
	assert.False(t, tc.CanConsume(60, 1), "minute token budget")
	tc.RecordUsage(10, 1)
	assert.False(t, tc.CanConsume(1, 1), "minute request budget")

	now = now.Add(time.Minute)
	assert.True(t, tc.CanConsume(1, 1))
	tc.RecordUsage(1, 1)
	assert.False(t, tc.CanConsume(1, 1), "daily request budget")

	now = now.Add(24 * time.Hour)
	assert.True(t, tc.CanConsume(1, 1))
}
