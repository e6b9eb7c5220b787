package retrieval

import "strings"

const GreetingMessage = "👋 Hello! Ask me something like 'What is Oceansat-3?' or 'Show me Gujarat on map.'"

var greetings = map[string]struct{}{
	"hey":   {},
	"hi":    {},
	"hello": {},
	"okay":  {},
}

// IsGreeting reports whether the whole question is a bare greeting.
func IsGreeting(question string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(question))]
	return ok
}
