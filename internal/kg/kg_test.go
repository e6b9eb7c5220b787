package kg

import (
	"context"
	"errors"
	"testing"
	"time"

	"skyquery-bot/internal/nlp"
	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnotator struct {
	analysis *nlp.Analysis
	err      error
}

func (f fakeAnnotator) Annotate(string) (*nlp.Analysis, error) {
	return f.analysis, f.err
}

func tok(text, pos, lemma, dep string) nlp.Token {
	return nlp.Token{Text: text, POS: pos, Lemma: lemma, Dep: dep}
}

func TestExtractEntities(t *testing.T) {
	ex := NewExtractor(fakeAnnotator{analysis: &nlp.Analysis{Entities: []nlp.Entity{
		{Text: "ISRO", Label: "ORG"},
		{Text: " Gujarat ", Label: "GPE"},
		{Text: "42", Label: "CARDINAL"},
		{Text: "  ", Label: "PERSON"},
		{Text: "2022", Label: "DATE"},
	}}})

	ents, err := ex.ExtractEntities("irrelevant")
	require.NoError(t, err)
	assert.Equal(t, []models.Entity{
		{Name: "ISRO", Label: "ORG"},
		{Name: "Gujarat", Label: "GPE"},
		{Name: "2022", Label: "DATE"},
	}, ents)
}

func TestExtractTriples(t *testing.T) {
	t.Run("one triple per complete sentence", func(t *testing.T) {
		ex := NewExtractor(fakeAnnotator{analysis: &nlp.Analysis{Sentences: []nlp.Sentence{
			{Tokens: []nlp.Token{
				tok("ISRO", nlp.POSPropN, "isro", nlp.DepNsubj),
				tok("launched", nlp.POSVerb, "launch", nlp.DepRoot),
				tok("Oceansat-3", nlp.POSPropN, "oceansat-3", nlp.DepDobj),
			}},
			{Tokens: []nlp.Token{
				tok("Data", nlp.POSNoun, "data", ""),
				tok("available", nlp.POSAdj, "available", ""),
			}},
		}}})

		triples, err := ex.ExtractTriples("irrelevant")
		require.NoError(t, err)
		assert.Equal(t, []models.Triple{{Subject: "ISRO", Verb: "launch", Object: "Oceansat-3"}}, triples)
	})

	t.Run("last subject object and verb win", func(t *testing.T) {
		ex := NewExtractor(fakeAnnotator{analysis: &nlp.Analysis{Sentences: []nlp.Sentence{
			{Tokens: []nlp.Token{
				tok("ISRO", nlp.POSPropN, "isro", nlp.DepNsubj),
				tok("built", nlp.POSVerb, "build", nlp.DepRoot),
				tok("INSAT", nlp.POSPropN, "insat", nlp.DepDobj),
				tok("and", nlp.POSConj, "and", ""),
				tok("SAC", nlp.POSPropN, "sac", "nsubjpass"),
				tok("operates", nlp.POSVerb, "operate", ""),
				tok("MOSDAC", nlp.POSPropN, "mosdac", nlp.DepPobj),
			}},
		}}})

		triples, err := ex.ExtractTriples("irrelevant")
		require.NoError(t, err)
		require.Len(t, triples, 1)
		assert.Equal(t, models.Triple{Subject: "SAC", Verb: "operate", Object: "MOSDAC"}, triples[0])
	})

	t.Run("prepositional object replaces direct object", func(t *testing.T) {
		ex := NewExtractor(fakeAnnotator{analysis: &nlp.Analysis{Sentences: []nlp.Sentence{
			{Tokens: []nlp.Token{
				tok("ISRO", nlp.POSPropN, "isro", nlp.DepNsubj),
				tok("launched", nlp.POSVerb, "launch", nlp.DepRoot),
				tok("Oceansat-3", nlp.POSPropN, "oceansat-3", nlp.DepDobj),
				tok("from", nlp.POSAdp, "from", "prep"),
				tok("Sriharikota", nlp.POSPropN, "sriharikota", nlp.DepPobj),
			}},
		}}})

		triples, err := ex.ExtractTriples("ISRO launched Oceansat-3 from Sriharikota")
		require.NoError(t, err)
		assert.Equal(t, []models.Triple{{Subject: "ISRO", Verb: "launch", Object: "Sriharikota"}}, triples)
	})

	t.Run("annotator failure", func(t *testing.T) {
		ex := NewExtractor(fakeAnnotator{err: errors.New("model missing")})
		_, err := ex.ExtractTriples("x")
		assert.Error(t, err)
	})
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"What", "Oceansat-3?"}, Keywords("What is Oceansat-3?"))
	assert.Empty(t, Keywords("is it at"))
	assert.Empty(t, Keywords(""))
	// length is measured in characters, not bytes
	assert.Equal(t, []string{"भारत"}, Keywords("भारत"))
	assert.Empty(t, Keywords("Río"))
	assert.Equal(t, []string{"Pôle"}, Keywords("Río Pôle"))
}

type recordingStore struct {
	GraphStore
	edges   map[string]*models.Edge
	err     error
	lookups []string
}

func (r *recordingStore) FindOutgoingEdge(ctx context.Context, keyword string) (*models.Edge, error) {
	r.lookups = append(r.lookups, keyword)
	if r.err != nil {
		return nil, r.err
	}
	return r.edges[keyword], nil
}

type lookupRecorder struct {
	lookups []string
}

func (l *lookupRecorder) RecordGraphLookup(ctx context.Context, backend string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	l.lookups = append(l.lookups, backend+":"+outcome)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("first hit short-circuits", func(t *testing.T) {
		store := &recordingStore{edges: map[string]*models.Edge{
			"INSAT": {Subject: "INSAT-3D", Predicate: "CARRY", Object: "Imager"},
			"ISRO":  {Subject: "ISRO", Predicate: "BUILD", Object: "INSAT"},
		}}
		edge, err := NewResolver(store, time.Second).Resolve(ctx, "does INSAT relate ISRO")

		require.NoError(t, err)
		require.NotNil(t, edge)
		assert.Equal(t, "(INSAT-3D) -[CARRY]-> (Imager)", edge.Fact())
		assert.Equal(t, []string{"does", "INSAT"}, store.lookups)
	})

	t.Run("no match is not an error", func(t *testing.T) {
		store := &recordingStore{}
		edge, err := NewResolver(store, time.Second).Resolve(ctx, "tell me about cyclones")

		require.NoError(t, err)
		assert.Nil(t, edge)
		assert.Equal(t, []string{"tell", "about", "cyclones"}, store.lookups)
	})

	t.Run("short words are never looked up", func(t *testing.T) {
		store := &recordingStore{}
		edge, err := NewResolver(store, 0).Resolve(ctx, "is it so")

		require.NoError(t, err)
		assert.Nil(t, edge)
		assert.Empty(t, store.lookups)
	})

	t.Run("lookups are recorded per backend", func(t *testing.T) {
		store := &recordingStore{edges: map[string]*models.Edge{
			"INSAT": {Subject: "INSAT-3D", Predicate: "CARRY", Object: "Imager"},
		}}
		rec := &lookupRecorder{}
		edge, err := NewResolver(store, time.Second).WithMetrics(rec, "memory").Resolve(ctx, "does INSAT relate ISRO")

		require.NoError(t, err)
		require.NotNil(t, edge)
		assert.Equal(t, []string{"memory:miss", "memory:hit"}, rec.lookups)
	})

	t.Run("failed lookups are not recorded", func(t *testing.T) {
		rec := &lookupRecorder{}
		store := &recordingStore{err: errors.New("connection refused")}
		_, err := NewResolver(store, time.Second).WithMetrics(rec, "neo4j").Resolve(ctx, "what is oceansat")

		assert.Error(t, err)
		assert.Empty(t, rec.lookups)
	})

	t.Run("store failure is typed", func(t *testing.T) {
		store := &recordingStore{err: errors.New("connection refused")}
		edge, err := NewResolver(store, time.Second).Resolve(ctx, "what is oceansat")

		assert.Nil(t, edge)
		assert.ErrorIs(t, err, ErrGraphUnavailable)
		assert.Equal(t, []string{"what"}, store.lookups)
	})
}
