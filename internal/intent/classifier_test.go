package intent

import (
	"errors"
	"testing"

	"skyquery-bot/internal/config"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
)

type fakeAnnotator struct {
	analysis *nlp.Analysis
	err      error
	calls    int
	texts    []string
}

func (f *fakeAnnotator) Annotate(text string) (*nlp.Analysis, error) {
	f.calls++
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.analysis == nil {
		return &nlp.Analysis{}, nil
	}
	return f.analysis, nil
}

func sentence(tokens ...nlp.Token) *nlp.Analysis {
	return &nlp.Analysis{Sentences: []nlp.Sentence{{Tokens: tokens}}}
}

func newClassifier(a nlp.Annotator) *Classifier {
	return NewClassifier(a, config.DefaultGeoKeywords, config.DefaultKGVerbs)
}

func TestClassifyGeoHasPriority(t *testing.T) {
	ann := &fakeAnnotator{analysis: sentence(
		nlp.Token{Text: "what", POS: nlp.POSPron, Dep: nlp.DepNsubj},
		nlp.Token{Text: "is", POS: nlp.POSVerb, Lemma: "be"},
	)}
	c := newClassifier(ann)

	assert.Equal(t, models.IntentGeo, c.Classify("Where is Gujarat?"))
	assert.Equal(t, models.IntentGeo, c.Classify("Show me the MAP of Kerala"))
	assert.Equal(t, 0, ann.calls, "geo keywords short-circuit annotation")
}

func TestClassifyGeoSubstring(t *testing.T) {
	c := newClassifier(&fakeAnnotator{})

	// "state" inside "statement" still counts
	assert.Equal(t, models.IntentGeo, c.Classify("Read the mission statement"))
}

func TestClassifyKG(t *testing.T) {
	t.Run("copula by surface form", func(t *testing.T) {
		c := newClassifier(&fakeAnnotator{analysis: sentence(
			nlp.Token{Text: "what", POS: nlp.POSPron, Dep: nlp.DepNsubj},
			nlp.Token{Text: "is", POS: nlp.POSVerb, Lemma: "be", Dep: nlp.DepRoot},
			nlp.Token{Text: "oceansat-3", POS: nlp.POSPropN},
		)})
		assert.Equal(t, models.IntentKG, c.Classify("What is Oceansat-3?"))
	})

	t.Run("relational verb by lemma", func(t *testing.T) {
		c := newClassifier(&fakeAnnotator{analysis: sentence(
			nlp.Token{Text: "insat", POS: nlp.POSPropN, Dep: nlp.DepNsubj},
			nlp.Token{Text: "connected", POS: nlp.POSVerb, Lemma: "connect"},
		)})
		assert.Equal(t, models.IntentKG, c.Classify("How is INSAT connected"))
	})
}

func TestClassifyRAG(t *testing.T) {
	t.Run("verb without subject", func(t *testing.T) {
		c := newClassifier(&fakeAnnotator{analysis: sentence(
			nlp.Token{Text: "define", POS: nlp.POSVerb, Lemma: "define"},
			nlp.Token{Text: "sst", POS: nlp.POSNoun, Dep: nlp.DepDobj},
		)})
		assert.Equal(t, models.IntentRAG, c.Classify("define sst"))
	})

	t.Run("subject with non relational verb", func(t *testing.T) {
		c := newClassifier(&fakeAnnotator{analysis: sentence(
			nlp.Token{Text: "i", POS: nlp.POSPron, Dep: nlp.DepNsubj},
			nlp.Token{Text: "download", POS: nlp.POSVerb, Lemma: "download"},
		)})
		assert.Equal(t, models.IntentRAG, c.Classify("can i download data"))
	})

	t.Run("annotator failure", func(t *testing.T) {
		c := newClassifier(&fakeAnnotator{err: errors.New("boom")})
		assert.Equal(t, models.IntentRAG, c.Classify("what is insat"))
	})

	t.Run("nil annotator", func(t *testing.T) {
		c := newClassifier(nil)
		assert.Equal(t, models.IntentRAG, c.Classify("what is insat"))
	})
}

func TestClassifyAnnotatesOriginalCasing(t *testing.T) {
	ann := &fakeAnnotator{analysis: sentence(
		nlp.Token{Text: "What", POS: nlp.POSPron, Dep: nlp.DepNsubj},
		nlp.Token{Text: "Is", POS: nlp.POSVerb, Lemma: "be", Dep: nlp.DepRoot},
		nlp.Token{Text: "Oceansat-3", POS: nlp.POSPropN},
	)}
	c := newClassifier(ann)

	assert.Equal(t, models.IntentKG, c.Classify("What Is Oceansat-3?"))
	assert.Equal(t, []string{"What Is Oceansat-3?"}, ann.texts)
}

func TestClassifyEmptyIsDeterministic(t *testing.T) {
	ann := &fakeAnnotator{}
	c := newClassifier(ann)

	for i := 0; i < 3; i++ {
		assert.Equal(t, models.IntentRAG, c.Classify(""))
		assert.Equal(t, models.IntentRAG, c.Classify("   \t"))
	}
	assert.Equal(t, 0, ann.calls)
}

func TestClassifyCustomKeywords(t *testing.T) {
	c := NewClassifier(&fakeAnnotator{}, []string{" Orbit "}, []string{"LAUNCH"})

	assert.Equal(t, models.IntentGeo, c.Classify("what orbit does it use"))
	assert.Equal(t, models.IntentRAG, c.Classify("show map"))
}
