package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"skyquery-bot/internal/config"
	"skyquery-bot/internal/intent"
	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/internal/retrieval"
	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClassifier models.Intent

func (f fixedClassifier) Classify(string) models.Intent { return models.Intent(f) }

type fakeResolver struct {
	edge  *models.Edge
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, question string) (*models.Edge, error) {
	f.calls++
	return f.edge, f.err
}

type echoGenerator struct {
	calls   int
	context string
}

func (g *echoGenerator) Generate(ctx context.Context, question, context string) string {
	g.calls++
	g.context = context
	return fmt.Sprintf("answer to %q", question)
}

type fakeGeo struct{ calls int }

func (f *fakeGeo) Respond(ctx context.Context, question string) models.Answer {
	f.calls++
	return models.Answer{Text: "🗺️ Showing Gujarat on the map.", Intent: models.IntentGeo, Kind: models.AnswerKindGeo,
		MapData: &models.MapData{Lat: 22.2587, Lon: 71.1924, Popup: "Gujarat"}}
}

var testChunks = retrieval.NewStaticChunkStore([]models.Chunk{
	{Text: "Oceansat-3 is a satellite", Source: "https://www.mosdac.gov.in/oceansat-3", Type: models.ChunkTypeWeb},
	{Text: "unrelated text", Source: "other"},
})

func TestRouteGeo(t *testing.T) {
	geo := &fakeGeo{}
	res := &fakeResolver{}
	gen := &echoGenerator{}
	r := New(fixedClassifier(models.IntentGeo), res, testChunks, gen, geo, nil)

	ans := r.Route(context.Background(), "Show me Gujarat on map.")

	assert.Equal(t, models.AnswerKindGeo, ans.Kind)
	require.NotNil(t, ans.MapData)
	assert.Equal(t, 1, geo.calls)
	assert.Zero(t, res.calls)
	assert.Zero(t, gen.calls)
}

func TestRouteKGHit(t *testing.T) {
	res := &fakeResolver{edge: &models.Edge{Subject: "Oceansat-3", Predicate: "CARRY", Object: "OCM-3"}}
	gen := &echoGenerator{}
	r := New(fixedClassifier(models.IntentKG), res, testChunks, gen, &fakeGeo{}, nil)

	ans := r.Route(context.Background(), "What is Oceansat-3?")

	assert.Equal(t, "🔎 KG Answer: (Oceansat-3) -[CARRY]-> (OCM-3)", ans.Text)
	assert.Equal(t, models.AnswerKindKG, ans.Kind)
	assert.Equal(t, models.IntentKG, ans.Intent)
	assert.Nil(t, ans.Confidence)
	assert.Zero(t, gen.calls)
}

func TestRouteKGFallback(t *testing.T) {
	for name, tc := range map[string]struct {
		res      *fakeResolver
		degraded bool
	}{
		"miss":        {res: &fakeResolver{}},
		"store error": {res: &fakeResolver{err: fmt.Errorf("find: %w", kg.ErrGraphUnavailable)}, degraded: true},
	} {
		t.Run(name, func(t *testing.T) {
			res := tc.res
			gen := &echoGenerator{}
			r := New(fixedClassifier(models.IntentKG), res, testChunks, gen, &fakeGeo{}, nil)

			ans := r.Route(context.Background(), "What is Oceansat-3?")

			assert.Equal(t, `🧠 Fallback RAG Answer: answer to "What is Oceansat-3?"`, ans.Text)
			assert.Equal(t, models.AnswerKindFallback, ans.Kind)
			assert.Equal(t, "https://www.mosdac.gov.in/oceansat-3", ans.Source)
			assert.Equal(t, "Oceansat-3 is a satellite", gen.context)
			require.NotNil(t, ans.Confidence)
			assert.InDelta(t, 1.0/3.0, *ans.Confidence, 1e-9)
			assert.Equal(t, tc.degraded, ans.Degraded)
		})
	}
}

func TestRouteRAG(t *testing.T) {
	ctx := context.Background()

	t.Run("retrieved chunk is generated from", func(t *testing.T) {
		gen := &echoGenerator{}
		r := New(fixedClassifier(models.IntentRAG), &fakeResolver{}, testChunks, gen, &fakeGeo{}, nil)

		ans := r.Route(ctx, "tell me about oceansat-3")
		assert.Equal(t, `🧠 RAG Answer: answer to "tell me about oceansat-3"`, ans.Text)
		assert.Equal(t, models.AnswerKindRAG, ans.Kind)
		assert.Equal(t, 1, gen.calls)
	})

	greetingChunks := retrieval.NewStaticChunkStore(append([]models.Chunk{
		{Text: "hi there, welcome to MOSDAC", Source: "https://www.mosdac.gov.in"},
	}, testChunks.List()...))
	for name, chunks := range map[string]ChunkSource{
		"nil store":       nil,
		"non-empty store": greetingChunks,
	} {
		t.Run("greeting skips retrieval with "+name, func(t *testing.T) {
			gen := &echoGenerator{}
			r := New(fixedClassifier(models.IntentRAG), &fakeResolver{}, chunks, gen, &fakeGeo{}, nil)

			for _, q := range []string{"Hello", "hi"} {
				ans := r.Route(ctx, q)
				assert.Equal(t, "🧠 RAG Answer: "+retrieval.GreetingMessage, ans.Text)
				assert.Equal(t, models.AnswerKindGreeting, ans.Kind)
				assert.Empty(t, ans.Source)
				assert.Nil(t, ans.Confidence)
			}
			assert.Zero(t, gen.calls)
		})
	}

	t.Run("no match", func(t *testing.T) {
		gen := &echoGenerator{}
		r := New(fixedClassifier(models.IntentRAG), &fakeResolver{}, testChunks, gen, &fakeGeo{}, nil)

		ans := r.Route(ctx, "cyclone")
		assert.Equal(t, "🧠 RAG Answer: "+NoDataMessage, ans.Text)
		assert.Equal(t, models.AnswerKindNoData, ans.Kind)
		assert.Zero(t, gen.calls)
	})
}

func TestRouteEmptyQuestion(t *testing.T) {
	ann := nlp.NewProseAnnotator()
	classifier := intent.NewClassifier(ann, config.DefaultGeoKeywords, config.DefaultKGVerbs)
	gen := &echoGenerator{}
	r := New(classifier, &fakeResolver{err: errors.New("unused")}, testChunks, gen, &fakeGeo{}, nil)

	first := r.Route(context.Background(), "")
	for i := 0; i < 3; i++ {
		ans := r.Route(context.Background(), "   ")
		assert.Equal(t, first, ans)
	}
	assert.Equal(t, "🧠 RAG Answer: "+EmptyQuestionMessage, first.Text)
	assert.Equal(t, models.IntentRAG, first.Intent)
	assert.Zero(t, gen.calls)
}

func TestRouteWithRealClassifierGeoPriority(t *testing.T) {
	classifier := intent.NewClassifier(nlp.NewProseAnnotator(), config.DefaultGeoKeywords, config.DefaultKGVerbs)
	geo := &fakeGeo{}
	res := &fakeResolver{}
	r := New(classifier, res, testChunks, &echoGenerator{}, geo, nil)

	ans := r.Route(context.Background(), "Where is the Oceansat-3 data region?")
	assert.Equal(t, models.AnswerKindGeo, ans.Kind)
	assert.Equal(t, 1, geo.calls)
	assert.Zero(t, res.calls)
}
