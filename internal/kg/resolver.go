package kg

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"skyquery-bot/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MinKeywordLength is the character count a whitespace token must exceed to
// be used as a lookup keyword.
const MinKeywordLength = 3

// Keywords splits a question on whitespace and keeps, in order, the tokens
// longer than MinKeywordLength characters.
func Keywords(question string) []string {
	var out []string
	for _, w := range strings.Fields(question) {
		if utf8.RuneCountInString(w) > MinKeywordLength {
			out = append(out, w)
		}
	}
	return out
}

// LookupRecorder counts graph lookups by backend and outcome.
type LookupRecorder interface {
	RecordGraphLookup(ctx context.Context, backend string, hit bool)
}

// Resolver answers a question with a single graph edge, if one matches.
type Resolver struct {
	store    GraphStore
	timeout  time.Duration
	recorder LookupRecorder
	backend  string
}

func NewResolver(store GraphStore, timeout time.Duration) *Resolver {
	return &Resolver{store: store, timeout: timeout}
}

// WithMetrics records every completed lookup against backend.
func (r *Resolver) WithMetrics(recorder LookupRecorder, backend string) *Resolver {
	r.recorder = recorder
	r.backend = backend
	return r
}

// Resolve looks up each keyword in turn and returns the first edge found.
// A nil edge with a nil error means nothing matched.
func (r *Resolver) Resolve(ctx context.Context, question string) (*models.Edge, error) {
	ctx, span := otel.Tracer("kg").Start(ctx, "kg.resolve")
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	keywords := Keywords(question)
	span.SetAttributes(attribute.Int("kg.keywords", len(keywords)))

	for _, kw := range keywords {
		edge, err := r.store.FindOutgoingEdge(ctx, kw)
		if err != nil {
			if !errors.Is(err, ErrGraphUnavailable) {
				err = Unavailable("find edge", err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "graph lookup failed")
			return nil, err
		}
		if r.recorder != nil {
			r.recorder.RecordGraphLookup(ctx, r.backend, edge != nil)
		}
		if edge != nil {
			span.SetAttributes(attribute.String("kg.keyword", kw))
			return edge, nil
		}
	}
	return nil, nil
}
