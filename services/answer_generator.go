package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skyquery-bot/internal/ai"
	"skyquery-bot/internal/logger"
	"skyquery-bot/utils"
)

const promptTemplate = `You are a helpful AI assistant with expertise in Indian satellite data and MOSDAC services.

Answer the user's question using the following context:

---
%s
---

Q: %s
A:`

// BuildPrompt fences the retrieved context and appends the question.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}

// GenerationFailurePrefix starts every failed-completion answer.
const GenerationFailurePrefix = "❌ Gemini failed to answer: "

// GenerationFailure is the user-visible text for a failed completion.
func GenerationFailure(err error) string {
	return fmt.Sprintf("%s%v", GenerationFailurePrefix, err)
}

// AnswerGenerator asks the language model to answer from one chunk of context.
type AnswerGenerator struct {
	completer ai.Completer
	timeout   time.Duration
}

// NewAnswerGenerator accepts a nil completer, in which case every answer
// reports the missing API key.
func NewAnswerGenerator(completer ai.Completer, timeout time.Duration) *AnswerGenerator {
	return &AnswerGenerator{completer: completer, timeout: timeout}
}

// Generate makes a single completion call. Failures are returned as answer
// text, never as errors.
func (g *AnswerGenerator) Generate(ctx context.Context, question, context string) string {
	if g.completer == nil {
		return GenerationFailure(ai.ErrMissingAPIKey)
	}

	ctx, cancel := utils.WithCustomTimeout(ctx, g.timeout)
	defer cancel()

	answer, err := g.completer.Complete(ctx, BuildPrompt(question, context))
	if err != nil {
		logger.Warn("Answer generation failed", "error", err)
		return GenerationFailure(err)
	}
	return strings.TrimSpace(answer)
}
