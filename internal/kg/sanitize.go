package kg

import (
	"regexp"
	"strings"
)

// DefaultRelation is used when a verb has nothing identifier-safe in it.
const DefaultRelation = "RELATED_TO"

var nonIdentifier = regexp.MustCompile(`[^A-Z0-9_]`)

// SanitizeRelation turns a verb into a relation type made of [A-Z0-9_] only:
// "is-part of" becomes "ISPART_OF".
func SanitizeRelation(verb string) string {
	rel := strings.ToUpper(strings.TrimSpace(verb))
	rel = strings.ReplaceAll(rel, " ", "_")
	rel = nonIdentifier.ReplaceAllString(rel, "")
	if strings.Trim(rel, "_") == "" {
		return DefaultRelation
	}
	return rel
}
