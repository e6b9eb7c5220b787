package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoResponder(t *testing.T) {
	r := NewGeoResponder(DefaultGazetteer)
	ctx := context.Background()

	t.Run("state match", func(t *testing.T) {
		ans := r.Respond(ctx, "Show me Gujarat on map.")

		assert.Equal(t, "🗺️ Showing Gujarat on the map.", ans.Text)
		assert.Equal(t, models.IntentGeo, ans.Intent)
		assert.Equal(t, models.AnswerKindGeo, ans.Kind)
		require.NotNil(t, ans.MapData)
		assert.Equal(t, "Gujarat", ans.MapData.Popup)
		assert.InDelta(t, 22.2587, ans.MapData.Lat, 1e-4)
	})

	t.Run("case-insensitive alias", func(t *testing.T) {
		place, ok := r.Lookup("where is SRIHARIKOTA located")
		require.True(t, ok)
		assert.Equal(t, "Satish Dhawan Space Centre", place.Name)
	})

	t.Run("multi-word name", func(t *testing.T) {
		place, ok := r.Lookup("rainfall map of tamil nadu")
		require.True(t, ok)
		assert.Equal(t, "Tamil Nadu", place.Name)
	})

	t.Run("word boundaries", func(t *testing.T) {
		_, ok := r.Lookup("show the goal area")
		assert.False(t, ok, "goa inside goal must not match")
	})

	t.Run("gazetteer order wins", func(t *testing.T) {
		place, ok := r.Lookup("map of Ahmedabad in Gujarat")
		require.True(t, ok)
		assert.Equal(t, "Ahmedabad", place.Name)
	})

	t.Run("no match falls back to India", func(t *testing.T) {
		ans := r.Respond(ctx, "where is the boundary")

		assert.Contains(t, ans.Text, "couldn't find a matching location")
		require.NotNil(t, ans.MapData)
		assert.Equal(t, "India", ans.MapData.Popup)
		assert.Equal(t, models.AnswerKindGeo, ans.Kind)
	})
}

func TestLoadGazetteer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Port Blair","lat":11.62,"lon":92.72,"aliases":["Sri Vijaya Puram"]}]`), 0o644))

	places, err := LoadGazetteer(path)
	require.NoError(t, err)
	require.Len(t, places, 1)

	r := NewGeoResponder(places)
	place, ok := r.Lookup("map of sri vijaya puram")
	require.True(t, ok)
	assert.Equal(t, "Port Blair", place.Name)

	_, err = LoadGazetteer(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
