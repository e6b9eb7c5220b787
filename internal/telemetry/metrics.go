package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	IntentCounter       metric.Int64Counter
	AnswerCounter       metric.Int64Counter
	TokensUsed          metric.Int64Counter
	GraphLookups        metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics against the global meter
// provider (a no-op unless one has been installed).
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(ServiceName)

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	intentCounter, err := meter.Int64Counter(
		"router.intents.total",
		metric.WithDescription("Questions per classified intent"),
	)
	if err != nil {
		return nil, err
	}

	answerCounter, err := meter.Int64Counter(
		"router.answers.total",
		metric.WithDescription("Answers per resolution path"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	graphLookups, err := meter.Int64Counter(
		"kg.lookups.total",
		metric.WithDescription("Knowledge graph edge lookups"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		IntentCounter:       intentCounter,
		AnswerCounter:       answerCounter,
		TokensUsed:          tokensUsed,
		GraphLookups:        graphLookups,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)

	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordIntent counts a classified question
func (m *Metrics) RecordIntent(ctx context.Context, intent string) {
	if m == nil {
		return
	}
	m.IntentCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// RecordAnswer counts a produced answer by kind
func (m *Metrics) RecordAnswer(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.AnswerCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(ctx context.Context, tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(ctx, tokens, metric.WithAttributes(attribute.String("gemini.model", model)))
}

// RecordGraphLookup records a single-hop lookup and whether it matched
func (m *Metrics) RecordGraphLookup(ctx context.Context, backend string, hit bool) {
	if m == nil {
		return
	}
	m.GraphLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kg.backend", backend),
		attribute.Bool("kg.hit", hit),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
