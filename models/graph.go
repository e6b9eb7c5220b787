package models

import "fmt"

// Entity is a knowledge-graph node. Name is the identity key.
type Entity struct {
	Name  string `json:"name" bson:"name"`
	Label string `json:"label" bson:"label"`
}

// Triple is a raw subject-verb-object fact as extracted from a sentence,
// before the verb is turned into a relation type.
type Triple struct {
	Subject string `json:"subject"`
	Verb    string `json:"verb"`
	Object  string `json:"object"`
}

// Relation is a directed, typed edge between two entity names.
type Relation struct {
	Subject   string `json:"subject" bson:"subject"`
	Predicate string `json:"predicate" bson:"predicate"`
	Object    string `json:"object" bson:"object"`
}

// Edge is a single-hop lookup result.
type Edge struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Fact renders the edge as "(subject) -[PREDICATE]-> (object)".
func (e Edge) Fact() string {
	return fmt.Sprintf("(%s) -[%s]-> (%s)", e.Subject, e.Predicate, e.Object)
}
