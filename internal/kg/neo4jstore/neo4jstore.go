// Package neo4jstore keeps the knowledge graph in Neo4j as (:Entity) nodes
// joined by typed relationships.
package neo4jstore

import (
	"context"
	"fmt"

	"skyquery-bot/internal/kg"
	"skyquery-bot/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	mergeEntityQuery = `MERGE (e:Entity {name: $name}) ON CREATE SET e.label = $label`

	findEdgeQuery = `MATCH (a:Entity)-[r]->(b:Entity)
WHERE toLower(a.name) CONTAINS toLower($kw)
RETURN a.name AS subject, type(r) AS predicate, b.name AS object
LIMIT 1`

	countQuery = `MATCH (e:Entity) WITH count(e) AS entities
OPTIONAL MATCH (:Entity)-[r]->(:Entity)
RETURN entities, count(r) AS relations`
)

type Store struct {
	driver neo4j.DriverWithContext
}

// New wraps a connected driver and ensures the entity name constraint.
func New(ctx context.Context, driver neo4j.DriverWithContext) (*Store, error) {
	s := &Store{driver: driver}
	_, err := neo4j.ExecuteQuery(ctx, driver,
		`CREATE CONSTRAINT entity_name IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE`,
		nil, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, kg.Unavailable("create constraint", err)
	}
	return s, nil
}

func (s *Store) UpsertEntity(ctx context.Context, name, label string) error {
	_, err := neo4j.ExecuteQuery(ctx, s.driver, mergeEntityQuery,
		map[string]any{"name": name, "label": label},
		neo4j.EagerResultTransformer)
	if err != nil {
		return kg.Unavailable("merge entity", err)
	}
	return nil
}

// UpsertRelation merges a relationship typed by the sanitized predicate.
// MATCH yields no rows when an endpoint is missing, so nothing is created.
func (s *Store) UpsertRelation(ctx context.Context, subject, predicate, object string) error {
	query := fmt.Sprintf("MATCH (a:Entity {name: $subj}) MATCH (b:Entity {name: $obj}) MERGE (a)-[:`%s`]->(b)",
		kg.SanitizeRelation(predicate))

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"subj": subject, "obj": object},
		neo4j.EagerResultTransformer)
	if err != nil {
		return kg.Unavailable("merge relation", err)
	}
	return nil
}

func (s *Store) FindOutgoingEdge(ctx context.Context, keyword string) (*models.Edge, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, findEdgeQuery,
		map[string]any{"kw": keyword},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, kg.Unavailable("find outgoing edge", err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	rec := result.Records[0]
	subject, _, _ := neo4j.GetRecordValue[string](rec, "subject")
	predicate, _, _ := neo4j.GetRecordValue[string](rec, "predicate")
	object, _, _ := neo4j.GetRecordValue[string](rec, "object")

	return &models.Edge{Subject: subject, Predicate: predicate, Object: object}, nil
}

func (s *Store) Counts(ctx context.Context) (int64, int64, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, countQuery, nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return 0, 0, kg.Unavailable("count graph", err)
	}
	if len(result.Records) == 0 {
		return 0, 0, nil
	}

	entities, _, _ := neo4j.GetRecordValue[int64](result.Records[0], "entities")
	relations, _, _ := neo4j.GetRecordValue[int64](result.Records[0], "relations")
	return entities, relations, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
