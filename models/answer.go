package models

// Intent is the query category that selects the resolution path.
type Intent string

const (
	IntentGeo Intent = "geo"
	IntentKG  Intent = "kg"
	IntentRAG Intent = "rag"
)

// AnswerKind records which path produced an answer
type AnswerKind string

const (
	AnswerKindKG       AnswerKind = "kg"
	AnswerKindFallback AnswerKind = "fallback"
	AnswerKindRAG      AnswerKind = "rag"
	AnswerKindGeo      AnswerKind = "geo"
	AnswerKindGreeting AnswerKind = "greeting"
	AnswerKindNoData   AnswerKind = "no_data"
	AnswerKindError    AnswerKind = "error"
)

// MapData carries coordinates for the frontend map widget.
type MapData struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"`
}

// Answer is returned once per question.
type Answer struct {
	Text       string     `json:"answer"`
	Intent     Intent     `json:"intent"`
	Kind       AnswerKind `json:"kind"`
	Source     string     `json:"source,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	MapData    *MapData   `json:"map_data,omitempty"`
	// Degraded marks answers produced while a backend was failing.
	Degraded bool `json:"degraded,omitempty"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}
