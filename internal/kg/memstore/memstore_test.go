package memstore

import (
	"context"
	"testing"

	"skyquery-bot/internal/kg"
	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ kg.GraphStore = (*Store)(nil)

func TestUpsertsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.UpsertEntity(ctx, "ISRO", "ORG"))
		require.NoError(t, s.UpsertEntity(ctx, "Oceansat-3", "Entity"))
		require.NoError(t, s.UpsertRelation(ctx, "ISRO", "LAUNCH", "Oceansat-3"))
	}

	assert.Equal(t, []models.Entity{{Name: "ISRO", Label: "ORG"}, {Name: "Oceansat-3", Label: "Entity"}}, s.Entities())
	assert.Len(t, s.Relations(), 1)

	entities, relations, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entities)
	assert.Equal(t, int64(1), relations)
}

func TestUpsertEntityKeepsFirstLabel(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.UpsertEntity(ctx, "ISRO", "ORG"))
	require.NoError(t, s.UpsertEntity(ctx, "ISRO", "Entity"))

	assert.Equal(t, []models.Entity{{Name: "ISRO", Label: "ORG"}}, s.Entities())
}

func TestUpsertRelationNeedsBothEntities(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.UpsertEntity(ctx, "ISRO", "ORG"))
	require.NoError(t, s.UpsertRelation(ctx, "ISRO", "LAUNCH", "Missing"))

	assert.Empty(t, s.Relations())
}

func TestFindOutgoingEdge(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, name := range []string{"Oceansat-3", "OCM-3", "Oceansat-2", "Scatterometer"} {
		require.NoError(t, s.UpsertEntity(ctx, name, "Entity"))
	}
	require.NoError(t, s.UpsertRelation(ctx, "Oceansat-3", "CARRY", "OCM-3"))
	require.NoError(t, s.UpsertRelation(ctx, "Oceansat-2", "CARRY", "Scatterometer"))

	t.Run("case-insensitive containment in store order", func(t *testing.T) {
		edge, err := s.FindOutgoingEdge(ctx, "OCEANSAT")
		require.NoError(t, err)
		require.NotNil(t, edge)
		assert.Equal(t, "(Oceansat-3) -[CARRY]-> (OCM-3)", edge.Fact())
	})

	t.Run("only source names match", func(t *testing.T) {
		edge, err := s.FindOutgoingEdge(ctx, "scatterometer")
		require.NoError(t, err)
		assert.Nil(t, edge)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.FindOutgoingEdge(cctx, "oceansat")
		assert.Error(t, err)
	})
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertEntity(ctx, "Kalpana-1", "Entity"))
	require.NoError(t, s.UpsertEntity(ctx, "VHRR", "Entity"))
	require.NoError(t, s.UpsertRelation(ctx, "Kalpana-1", "CARRY", "VHRR"))

	fresh := New()
	require.NoError(t, fresh.UpsertEntity(ctx, "INSAT-3DS", "Entity"))
	require.NoError(t, fresh.UpsertEntity(ctx, "Imager", "Entity"))
	require.NoError(t, fresh.UpsertRelation(ctx, "INSAT-3DS", "CARRY", "Imager"))

	s.Replace(fresh)

	edge, err := s.FindOutgoingEdge(ctx, "kalpana")
	require.NoError(t, err)
	assert.Nil(t, edge)
	edge, err = s.FindOutgoingEdge(ctx, "insat")
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, "(INSAT-3DS) -[CARRY]-> (Imager)", edge.Fact())
	assert.Equal(t, []models.Entity{{Name: "INSAT-3DS", Label: "Entity"}, {Name: "Imager", Label: "Entity"}}, s.Entities())
}
