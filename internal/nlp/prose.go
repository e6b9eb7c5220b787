package nlp

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// ProseAnnotator annotates English text with the prose tokenizer, averaged
// perceptron tagger and entity extractor. Dependencies come from
// ParseDependencies and lemmas from the golem English dictionary.
type ProseAnnotator struct{}

func NewProseAnnotator() *ProseAnnotator {
	return &ProseAnnotator{}
}

func (p *ProseAnnotator) Annotate(text string) (*Analysis, error) {
	analysis := &Analysis{}
	if strings.TrimSpace(text) == "" {
		return analysis, nil
	}

	doc, err := prose.NewDocument(text, prose.WithTagging(false))
	if err != nil {
		return nil, fmt.Errorf("prose segmentation failed: %w", err)
	}

	for _, ent := range doc.Entities() {
		analysis.Entities = append(analysis.Entities, Entity{Text: ent.Text, Label: ent.Label})
	}

	for _, sent := range doc.Sentences() {
		sd, err := prose.NewDocument(sent.Text,
			prose.WithSegmentation(false),
			prose.WithExtraction(false),
		)
		if err != nil {
			return nil, fmt.Errorf("prose tagging failed: %w", err)
		}

		tokens := make([]Token, 0, len(sd.Tokens()))
		for _, tok := range sd.Tokens() {
			pos := UniversalPOS(tok.Tag)
			tokens = append(tokens, Token{
				Text:  tok.Text,
				Tag:   tok.Tag,
				POS:   pos,
				Lemma: Lemmatize(tok.Text, tok.Tag),
			})
		}
		ParseDependencies(tokens)

		analysis.Sentences = append(analysis.Sentences, Sentence{Text: sent.Text, Tokens: tokens})
	}

	return analysis, nil
}

// UniversalPOS maps a Penn Treebank tag to its universal part of speech.
func UniversalPOS(tag string) string {
	switch {
	case tag == "NN" || tag == "NNS":
		return POSNoun
	case tag == "NNP" || tag == "NNPS":
		return POSPropN
	case tag == "PRP" || tag == "PRP$" || tag == "WP" || tag == "WP$" || tag == "EX":
		return POSPron
	case strings.HasPrefix(tag, "VB"):
		return POSVerb
	case tag == "MD":
		return POSAux
	case strings.HasPrefix(tag, "JJ"):
		return POSAdj
	case strings.HasPrefix(tag, "RB") || tag == "WRB":
		return POSAdv
	case tag == "IN":
		return POSAdp
	case tag == "DT" || tag == "PDT" || tag == "WDT":
		return POSDet
	case tag == "CD":
		return POSNum
	case tag == "CC":
		return POSConj
	case tag == "TO" || tag == "RP" || tag == "POS":
		return POSPart
	case tag == "" || strings.ContainsAny(tag, ".,:;()$#\"'`"):
		return POSPunct
	default:
		return POSOther
	}
}
