// Package memstore is an in-process GraphStore used in tests and when no
// graph database is configured.
package memstore

import (
	"context"
	"strings"
	"sync"

	"skyquery-bot/models"
)

type Store struct {
	mu        sync.RWMutex
	entities  map[string]models.Entity
	order     []string
	relations []models.Relation
	seen      map[models.Relation]struct{}
}

func New() *Store {
	return &Store{
		entities: make(map[string]models.Entity),
		seen:     make(map[models.Relation]struct{}),
	}
}

func (s *Store) UpsertEntity(ctx context.Context, name, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[name]; ok {
		return nil
	}
	s.entities[name] = models.Entity{Name: name, Label: label}
	s.order = append(s.order, name)
	return nil
}

func (s *Store) UpsertRelation(ctx context.Context, subject, predicate, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hasSubj := s.entities[subject]
	_, hasObj := s.entities[object]
	if !hasSubj || !hasObj {
		return nil
	}

	rel := models.Relation{Subject: subject, Predicate: predicate, Object: object}
	if _, ok := s.seen[rel]; ok {
		return nil
	}
	s.seen[rel] = struct{}{}
	s.relations = append(s.relations, rel)
	return nil
}

func (s *Store) FindOutgoingEdge(ctx context.Context, keyword string) (*models.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kw := strings.ToLower(keyword)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rel := range s.relations {
		if strings.Contains(strings.ToLower(rel.Subject), kw) {
			return &models.Edge{Subject: rel.Subject, Predicate: rel.Predicate, Object: rel.Object}, nil
		}
	}
	return nil, nil
}

// Entities returns the stored entities in insertion order.
func (s *Store) Entities() []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Entity, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entities[name])
	}
	return out
}

// Relations returns the stored relations in insertion order.
func (s *Store) Relations() []models.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.Relation(nil), s.relations...)
}

// Replace swaps in the contents of src in one step. src must not be written
// afterwards.
func (s *Store) Replace(src *Store) {
	src.mu.RLock()
	entities, order, relations, seen := src.entities, src.order, src.relations, src.seen
	src.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities, s.order, s.relations, s.seen = entities, order, relations, seen
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) Counts(ctx context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.entities)), int64(len(s.relations)), nil
}
