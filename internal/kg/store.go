// Package kg builds and queries the entity/relation knowledge graph.
package kg

import (
	"context"
	"errors"
	"fmt"

	"skyquery-bot/models"
)

// ErrGraphUnavailable is returned (wrapped) by every store when the backing
// database cannot serve a request.
var ErrGraphUnavailable = errors.New("knowledge graph unavailable")

// GraphStore persists entities and relations and answers single-hop lookups.
// Upserts are idempotent: repeating one leaves the graph unchanged.
type GraphStore interface {
	UpsertEntity(ctx context.Context, name, label string) error
	// UpsertRelation is a no-op when either endpoint entity is missing.
	UpsertRelation(ctx context.Context, subject, predicate, object string) error
	// FindOutgoingEdge returns the first edge, in store order, whose source
	// entity name contains keyword case-insensitively, or nil when none does.
	FindOutgoingEdge(ctx context.Context, keyword string) (*models.Edge, error)
	Close(ctx context.Context) error
}

// Unavailable wraps a backend error so callers can match ErrGraphUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrGraphUnavailable, err)
}

// Counter is implemented by stores that can report their size.
type Counter interface {
	Counts(ctx context.Context) (entities, relations int64, err error)
}
