// Package nlp provides the linguistic annotations used by intent
// classification and knowledge-graph extraction: sentences, tokens with
// coarse part-of-speech, lemma and dependency label, and named entities.
package nlp

// Universal part-of-speech tags produced by annotators.
const (
	POSNoun  = "NOUN"
	POSPropN = "PROPN"
	POSPron  = "PRON"
	POSVerb  = "VERB"
	POSAux   = "AUX"
	POSAdj   = "ADJ"
	POSAdv   = "ADV"
	POSAdp   = "ADP"
	POSDet   = "DET"
	POSNum   = "NUM"
	POSConj  = "CCONJ"
	POSPart  = "PART"
	POSPunct = "PUNCT"
	POSOther = "X"
)

// Dependency labels assigned by the shallow parser.
const (
	DepNsubj = "nsubj"
	DepDobj  = "dobj"
	DepPobj  = "pobj"
	DepRoot  = "ROOT"
)

type Token struct {
	Text  string
	Tag   string // fine-grained Penn Treebank tag
	POS   string
	Lemma string
	Dep   string
}

type Entity struct {
	Text  string
	Label string
}

type Sentence struct {
	Text   string
	Tokens []Token
}

// Analysis is the annotation of one piece of text.
type Analysis struct {
	Sentences []Sentence
	Entities  []Entity
}

// Tokens returns the tokens of every sentence in document order.
func (a *Analysis) Tokens() []Token {
	if a == nil {
		return nil
	}
	var out []Token
	for _, s := range a.Sentences {
		out = append(out, s.Tokens...)
	}
	return out
}

// Annotator turns raw text into an Analysis. Implementations must be safe
// for concurrent use.
type Annotator interface {
	Annotate(text string) (*Analysis, error)
}
