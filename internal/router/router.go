// Package router answers a question by classifying it and dispatching to the
// graph, retrieval or geo backend.
package router

import (
	"context"
	"strings"

	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/retrieval"
	"skyquery-bot/internal/telemetry"
	"skyquery-bot/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	EmptyQuestionMessage = "⚠️ Please enter a valid question."
	NoDataMessage        = "⚠️ No relevant information found in MOSDAC content."

	kgPrefix       = "🔎 KG Answer: "
	fallbackPrefix = "🧠 Fallback RAG Answer: "
	ragPrefix      = "🧠 RAG Answer: "
)

type Classifier interface {
	Classify(question string) models.Intent
}

type Resolver interface {
	Resolve(ctx context.Context, question string) (*models.Edge, error)
}

type Generator interface {
	Generate(ctx context.Context, question, context string) string
}

type GeoResponder interface {
	Respond(ctx context.Context, question string) models.Answer
}

type ChunkSource interface {
	List() []models.Chunk
}

// Router holds only read-only collaborators, so one instance serves
// concurrent requests.
type Router struct {
	classifier Classifier
	resolver   Resolver
	chunks     ChunkSource
	generator  Generator
	geo        GeoResponder
	metrics    *telemetry.Metrics
}

func New(classifier Classifier, resolver Resolver, chunks ChunkSource, generator Generator, geo GeoResponder, metrics *telemetry.Metrics) *Router {
	return &Router{
		classifier: classifier,
		resolver:   resolver,
		chunks:     chunks,
		generator:  generator,
		geo:        geo,
		metrics:    metrics,
	}
}

// Route always returns an answer; backend failures become answer text or a
// fallback to retrieval.
func (r *Router) Route(ctx context.Context, question string) models.Answer {
	ctx, span := otel.Tracer("router").Start(ctx, "router.route")
	defer span.End()

	intent := r.classifier.Classify(question)
	span.SetAttributes(attribute.String("router.intent", string(intent)))
	r.metrics.RecordIntent(ctx, string(intent))

	var answer models.Answer
	switch intent {
	case models.IntentGeo:
		answer = r.geo.Respond(ctx, question)
	case models.IntentKG:
		answer = r.routeKG(ctx, question)
	default:
		answer = r.rag(ctx, question, models.IntentRAG, models.AnswerKindRAG, ragPrefix)
	}

	span.SetAttributes(attribute.String("router.kind", string(answer.Kind)))
	r.metrics.RecordAnswer(ctx, string(answer.Kind))
	return answer
}

func (r *Router) routeKG(ctx context.Context, question string) models.Answer {
	degraded := false
	if r.resolver != nil {
		edge, err := r.resolver.Resolve(ctx, question)
		switch {
		case err != nil:
			logger.Warn("Graph lookup failed, falling back to retrieval", "error", err)
			degraded = true
		case edge != nil:
			return models.Answer{
				Text:   kgPrefix + edge.Fact(),
				Intent: models.IntentKG,
				Kind:   models.AnswerKindKG,
			}
		}
	}
	answer := r.rag(ctx, question, models.IntentKG, models.AnswerKindFallback, fallbackPrefix)
	answer.Degraded = degraded
	return answer
}

// rag runs the retrieval pipeline. Only generated answers carry the kind
// of the path that asked for them; canned replies carry their own kind.
func (r *Router) rag(ctx context.Context, question string, intent models.Intent, kind models.AnswerKind, prefix string) models.Answer {
	if strings.TrimSpace(question) == "" {
		return models.Answer{Text: prefix + EmptyQuestionMessage, Intent: intent, Kind: models.AnswerKindNoData}
	}
	if retrieval.IsGreeting(question) {
		return models.Answer{Text: prefix + retrieval.GreetingMessage, Intent: intent, Kind: models.AnswerKindGreeting}
	}

	var chunks []models.Chunk
	if r.chunks != nil {
		chunks = r.chunks.List()
	}
	best, score, ok := retrieval.Retrieve(question, chunks)
	if !ok {
		return models.Answer{Text: prefix + NoDataMessage, Intent: intent, Kind: models.AnswerKindNoData}
	}

	confidence := retrieval.Confidence(question, score)
	return models.Answer{
		Text:       prefix + r.generator.Generate(ctx, question, best.Text),
		Intent:     intent,
		Kind:       kind,
		Source:     best.Source,
		Confidence: &confidence,
	}
}
