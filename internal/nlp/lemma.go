package nlp

import (
	"strings"
	"sync"

	"skyquery-bot/internal/logger"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// clitics the tokenizer splits off; the dictionary has no entry for them
var verbClitics = map[string]string{"'s": "be", "'re": "be", "'m": "be", "'ve": "have", "'d": "have"}

var english = sync.OnceValue(func() *golem.Lemmatizer {
	l, err := golem.New(en.New())
	if err != nil {
		logger.Warn("English lemma dictionary unavailable, using lower-cased words", "error", err)
		return nil
	}
	return l
})

// Lemmatize returns the dictionary base form of verbs and plural nouns,
// chosen by Penn Treebank tag. Other tokens, and words missing from the
// dictionary, are returned lower-cased.
func Lemmatize(word, tag string) string {
	w := strings.ToLower(word)
	isVerb := strings.HasPrefix(tag, "VB") || tag == "MD"
	if !isVerb && tag != "NNS" && tag != "NNPS" {
		return w
	}
	if isVerb {
		if base, ok := verbClitics[w]; ok {
			return base
		}
	}
	l := english()
	if l == nil {
		return w
	}
	return strings.ToLower(l.Lemma(w))
}
