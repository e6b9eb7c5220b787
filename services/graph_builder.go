package services

import (
	"context"
	"fmt"

	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/kg/memstore"
	"skyquery-bot/internal/logger"
	"skyquery-bot/models"
)

// GraphReport summarises one graph build.
type GraphReport struct {
	Chunks        int `json:"chunks"`
	SkippedChunks int `json:"skipped_chunks"`
	FailedChunks  int `json:"failed_chunks"`
	Entities      int `json:"entities"`
	Relations     int `json:"relations"`
}

// GraphBuilder loads extracted entities and triples into a graph store.
type GraphBuilder struct {
	extractor *kg.Extractor
	store     kg.GraphStore
}

func NewGraphBuilder(extractor *kg.Extractor, store kg.GraphStore) *GraphBuilder {
	return &GraphBuilder{extractor: extractor, store: store}
}

// Build upserts the entities and relations of every chunk. Entity and
// relation counts are upserts issued, not distinct graph elements.
func (b *GraphBuilder) Build(ctx context.Context, chunks []models.Chunk) (*GraphReport, error) {
	report := &GraphReport{}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if chunk.IsBlank() {
			report.SkippedChunks++
			continue
		}

		entities, relations, err := b.buildChunk(ctx, chunk)
		if err != nil {
			logger.Warn("Skipping chunk in graph build", "index", i, "source", chunk.Source, "error", err)
			report.FailedChunks++
			continue
		}
		report.Chunks++
		report.Entities += entities
		report.Relations += relations
	}

	logger.Info("Knowledge graph built",
		"chunks", report.Chunks,
		"skipped", report.SkippedChunks,
		"failed", report.FailedChunks,
		"entities", report.Entities,
		"relations", report.Relations,
	)
	return report, nil
}

func (b *GraphBuilder) buildChunk(ctx context.Context, chunk models.Chunk) (entities, relations int, err error) {
	ents, err := b.extractor.ExtractEntities(chunk.Text)
	if err != nil {
		return 0, 0, err
	}
	for _, ent := range ents {
		if err := b.store.UpsertEntity(ctx, ent.Name, ent.Label); err != nil {
			return entities, relations, fmt.Errorf("upsert entity %q: %w", ent.Name, err)
		}
		entities++
	}

	triples, err := b.extractor.ExtractTriples(chunk.Text)
	if err != nil {
		return entities, relations, err
	}
	for _, t := range triples {
		if err := b.store.UpsertEntity(ctx, t.Subject, kg.TripleEntityLabel); err != nil {
			return entities, relations, fmt.Errorf("upsert subject %q: %w", t.Subject, err)
		}
		if err := b.store.UpsertEntity(ctx, t.Object, kg.TripleEntityLabel); err != nil {
			return entities, relations, fmt.Errorf("upsert object %q: %w", t.Object, err)
		}
		if err := b.store.UpsertRelation(ctx, t.Subject, kg.SanitizeRelation(t.Verb), t.Object); err != nil {
			return entities, relations, fmt.Errorf("upsert relation %s->%s: %w", t.Subject, t.Object, err)
		}
		entities += 2
		relations++
	}
	return entities, relations, nil
}

// RebuildMemoryGraph builds a fresh graph from chunks and swaps it into dst,
// so relations from chunks that disappeared are dropped. dst is left alone
// when the build is cancelled.
func RebuildMemoryGraph(ctx context.Context, extractor *kg.Extractor, dst *memstore.Store, chunks []models.Chunk) (*GraphReport, error) {
	fresh := memstore.New()
	report, err := NewGraphBuilder(extractor, fresh).Build(ctx, chunks)
	if err != nil {
		return report, err
	}
	dst.Replace(fresh)
	return report, nil
}
