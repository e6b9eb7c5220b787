package intent

import (
	"strings"

	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/models"
)

// Classifier decides which backend should answer a question.
type Classifier struct {
	annotator   nlp.Annotator
	geoKeywords []string
	kgVerbs     map[string]struct{}
}

func NewClassifier(annotator nlp.Annotator, geoKeywords, kgVerbs []string) *Classifier {
	verbs := make(map[string]struct{}, len(kgVerbs))
	for _, v := range kgVerbs {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			verbs[v] = struct{}{}
		}
	}

	keywords := make([]string, 0, len(geoKeywords))
	for _, k := range geoKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Classifier{
		annotator:   annotator,
		geoKeywords: keywords,
		kgVerbs:     verbs,
	}
}

// Classify returns geo when a geo keyword occurs anywhere in the lower-cased
// question, kg when the question has a nominal subject and a relational verb,
// and rag otherwise.
func (c *Classifier) Classify(question string) models.Intent {
	q := strings.ToLower(question)

	for _, kw := range c.geoKeywords {
		if strings.Contains(q, kw) {
			return models.IntentGeo
		}
	}

	if strings.TrimSpace(q) == "" || c.annotator == nil {
		return models.IntentRAG
	}

	// tagging and NER rely on the original casing
	analysis, err := c.annotator.Annotate(question)
	if err != nil {
		logger.Warn("Intent annotation failed, defaulting to rag", "error", err)
		return models.IntentRAG
	}

	if len(analysis.Entities) > 0 {
		logger.Debug("Entities detected in question", "entities", analysis.Entities)
	}

	hasSubject, hasRelationalVerb := false, false
	for _, tok := range analysis.Tokens() {
		if tok.Dep == nlp.DepNsubj {
			hasSubject = true
		}
		if tok.POS == nlp.POSVerb && c.isRelationalVerb(tok) {
			hasRelationalVerb = true
		}
	}

	if hasSubject && hasRelationalVerb {
		return models.IntentKG
	}
	return models.IntentRAG
}

// copular forms are listed by surface form, so both text and lemma are checked
func (c *Classifier) isRelationalVerb(tok nlp.Token) bool {
	if _, ok := c.kgVerbs[strings.ToLower(tok.Lemma)]; ok {
		return true
	}
	_, ok := c.kgVerbs[strings.ToLower(tok.Text)]
	return ok
}
