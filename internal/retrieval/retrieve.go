// Package retrieval selects the crawled chunk that best matches a question.
package retrieval

import (
	"strings"

	"skyquery-bot/models"
)

// QueryWords returns the distinct lower-cased whitespace-separated words of
// the question in first-occurrence order.
func QueryWords(question string) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

// Score counts how many words occur as substrings of the lower-cased text.
func Score(words []string, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			score++
		}
	}
	return score
}

// Retrieve returns the chunk with the highest score and that score. Blank
// chunks are skipped and the earliest chunk wins ties. ok is false when no
// chunk shares a word with the question.
func Retrieve(question string, chunks []models.Chunk) (best models.Chunk, score int, ok bool) {
	words := QueryWords(question)
	if len(words) == 0 {
		return models.Chunk{}, 0, false
	}

	for _, c := range chunks {
		if c.IsBlank() {
			continue
		}
		if s := Score(words, c.Text); s > score {
			best, score = c, s
		}
	}
	if score == 0 {
		return models.Chunk{}, 0, false
	}
	return best, score, true
}

// Confidence is the fraction of distinct query words found in the chunk.
func Confidence(question string, score int) float64 {
	n := len(QueryWords(question))
	if n == 0 {
		return 0
	}
	return float64(score) / float64(n)
}
