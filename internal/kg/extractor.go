package kg

import (
	"fmt"
	"strings"

	"skyquery-bot/internal/nlp"
	"skyquery-bot/models"
)

// EntityLabels are the entity categories kept in the graph.
var EntityLabels = map[string]struct{}{
	"ORG": {}, "GPE": {}, "PERSON": {}, "NORP": {}, "FAC": {},
	"PRODUCT": {}, "LOC": {}, "DATE": {}, "EVENT": {},
}

// TripleEntityLabel is the label given to entities created from triples.
const TripleEntityLabel = "Entity"

// Extractor derives entities and subject-verb-object triples from text.
type Extractor struct {
	annotator nlp.Annotator
}

func NewExtractor(annotator nlp.Annotator) *Extractor {
	return &Extractor{annotator: annotator}
}

// ExtractEntities returns the named entities whose label is allow-listed.
func (e *Extractor) ExtractEntities(text string) ([]models.Entity, error) {
	analysis, err := e.annotator.Annotate(text)
	if err != nil {
		return nil, fmt.Errorf("annotate entities: %w", err)
	}

	var out []models.Entity
	for _, ent := range analysis.Entities {
		if _, ok := EntityLabels[ent.Label]; !ok {
			continue
		}
		name := strings.TrimSpace(ent.Text)
		if name == "" {
			continue
		}
		out = append(out, models.Entity{Name: name, Label: ent.Label})
	}
	return out, nil
}

// ExtractTriples emits at most one triple per sentence. Within a sentence the
// last subject-like token, the last object-like token and the lemma of the
// last verb are kept; sentences missing any of the three are skipped.
func (e *Extractor) ExtractTriples(text string) ([]models.Triple, error) {
	analysis, err := e.annotator.Annotate(text)
	if err != nil {
		return nil, fmt.Errorf("annotate triples: %w", err)
	}

	var out []models.Triple
	for _, sent := range analysis.Sentences {
		var subj, verb, obj string
		for _, tok := range sent.Tokens {
			switch {
			case strings.Contains(tok.Dep, "subj"):
				subj = tok.Text
			case strings.Contains(tok.Dep, "obj"):
				obj = tok.Text
			}
			if tok.POS == nlp.POSVerb {
				verb = tok.Lemma
			}
		}
		subj, verb, obj = strings.TrimSpace(subj), strings.TrimSpace(verb), strings.TrimSpace(obj)
		if subj != "" && verb != "" && obj != "" {
			out = append(out, models.Triple{Subject: subj, Verb: verb, Object: obj})
		}
	}
	return out, nil
}
