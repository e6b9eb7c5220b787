package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"skyquery-bot/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Place is a gazetteer entry.
type Place struct {
	Name    string   `json:"name"`
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	Aliases []string `json:"aliases,omitempty"`
}

// IndiaCentroid is shown when no place matches.
var IndiaCentroid = Place{Name: "India", Lat: 22.3511, Lon: 78.6677}

// DefaultGazetteer lists ISRO sites and major cities before states and
// union territories; the first match in this order wins.
var DefaultGazetteer = []Place{
	{Name: "Space Applications Centre", Lat: 23.0339, Lon: 72.5454, Aliases: []string{"SAC"}},
	{Name: "Satish Dhawan Space Centre", Lat: 13.7199, Lon: 80.2304, Aliases: []string{"Sriharikota", "SHAR"}},
	{Name: "Vikram Sarabhai Space Centre", Lat: 8.5335, Lon: 76.8695, Aliases: []string{"VSSC", "Thumba"}},
	{Name: "Ahmedabad", Lat: 23.0225, Lon: 72.5714},
	{Name: "Bengaluru", Lat: 12.9716, Lon: 77.5946, Aliases: []string{"Bangalore"}},
	{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777, Aliases: []string{"Bombay"}},
	{Name: "Kolkata", Lat: 22.5726, Lon: 88.3639, Aliases: []string{"Calcutta"}},
	{Name: "Chennai", Lat: 13.0827, Lon: 80.2707, Aliases: []string{"Madras"}},
	{Name: "Hyderabad", Lat: 17.3850, Lon: 78.4867},
	{Name: "Thiruvananthapuram", Lat: 8.5241, Lon: 76.9366, Aliases: []string{"Trivandrum"}},

	{Name: "Andhra Pradesh", Lat: 15.9129, Lon: 79.7400},
	{Name: "Arunachal Pradesh", Lat: 28.2180, Lon: 94.7278},
	{Name: "Assam", Lat: 26.2006, Lon: 92.9376},
	{Name: "Bihar", Lat: 25.0961, Lon: 85.3131},
	{Name: "Chhattisgarh", Lat: 21.2787, Lon: 81.8661},
	{Name: "Goa", Lat: 15.2993, Lon: 74.1240},
	{Name: "Gujarat", Lat: 22.2587, Lon: 71.1924},
	{Name: "Haryana", Lat: 29.0588, Lon: 76.0856},
	{Name: "Himachal Pradesh", Lat: 31.1048, Lon: 77.1734},
	{Name: "Jharkhand", Lat: 23.6102, Lon: 85.2799},
	{Name: "Karnataka", Lat: 15.3173, Lon: 75.7139},
	{Name: "Kerala", Lat: 10.8505, Lon: 76.2711},
	{Name: "Madhya Pradesh", Lat: 22.9734, Lon: 78.6569},
	{Name: "Maharashtra", Lat: 19.7515, Lon: 75.7139},
	{Name: "Manipur", Lat: 24.6637, Lon: 93.9063},
	{Name: "Meghalaya", Lat: 25.4670, Lon: 91.3662},
	{Name: "Mizoram", Lat: 23.1645, Lon: 92.9376},
	{Name: "Nagaland", Lat: 26.1584, Lon: 94.5624},
	{Name: "Odisha", Lat: 20.9517, Lon: 85.0985, Aliases: []string{"Orissa"}},
	{Name: "Punjab", Lat: 31.1471, Lon: 75.3412},
	{Name: "Rajasthan", Lat: 27.0238, Lon: 74.2179},
	{Name: "Sikkim", Lat: 27.5330, Lon: 88.5122},
	{Name: "Tamil Nadu", Lat: 11.1271, Lon: 78.6569},
	{Name: "Telangana", Lat: 18.1124, Lon: 79.0193},
	{Name: "Tripura", Lat: 23.9408, Lon: 91.9882},
	{Name: "Uttar Pradesh", Lat: 26.8467, Lon: 80.9462},
	{Name: "Uttarakhand", Lat: 30.0668, Lon: 79.0193},
	{Name: "West Bengal", Lat: 22.9868, Lon: 87.8550},
	{Name: "Andaman and Nicobar Islands", Lat: 11.7401, Lon: 92.6586, Aliases: []string{"Andaman", "Nicobar"}},
	{Name: "Chandigarh", Lat: 30.7333, Lon: 76.7794},
	{Name: "Dadra and Nagar Haveli and Daman and Diu", Lat: 20.3974, Lon: 72.8328, Aliases: []string{"Daman", "Diu", "Dadra"}},
	{Name: "Delhi", Lat: 28.7041, Lon: 77.1025},
	{Name: "Jammu and Kashmir", Lat: 33.7782, Lon: 76.5762, Aliases: []string{"Kashmir"}},
	{Name: "Ladakh", Lat: 34.1526, Lon: 77.5771},
	{Name: "Lakshadweep", Lat: 10.5667, Lon: 72.6417},
	{Name: "Puducherry", Lat: 11.9416, Lon: 79.8083, Aliases: []string{"Pondicherry"}},
}

// LoadGazetteer reads a JSON array of places.
func LoadGazetteer(path string) ([]Place, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, fmt.Errorf("decode gazetteer %s: %w", path, err)
	}
	return places, nil
}

type placeMatcher struct {
	place   Place
	pattern *regexp.Regexp
}

// GeoResponder answers location questions with map coordinates.
type GeoResponder struct {
	matchers []placeMatcher
}

func NewGeoResponder(places []Place) *GeoResponder {
	r := &GeoResponder{}
	for _, p := range places {
		names := append([]string{p.Name}, p.Aliases...)
		quoted := make([]string, 0, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				quoted = append(quoted, regexp.QuoteMeta(n))
			}
		}
		if len(quoted) == 0 {
			continue
		}
		r.matchers = append(r.matchers, placeMatcher{
			place:   p,
			pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return r
}

// Lookup returns the first place mentioned in the question.
func (r *GeoResponder) Lookup(question string) (Place, bool) {
	for _, m := range r.matchers {
		if m.pattern.MatchString(question) {
			return m.place, true
		}
	}
	return Place{}, false
}

func (r *GeoResponder) Respond(ctx context.Context, question string) models.Answer {
	_, span := otel.Tracer("geo").Start(ctx, "geo.respond")
	defer span.End()

	place, ok := r.Lookup(question)
	span.SetAttributes(attribute.Bool("geo.matched", ok))

	if !ok {
		return models.Answer{
			Text:    "🗺️ I couldn't find a matching location in your question. Showing India on the map.",
			Intent:  models.IntentGeo,
			Kind:    models.AnswerKindGeo,
			MapData: &models.MapData{Lat: IndiaCentroid.Lat, Lon: IndiaCentroid.Lon, Popup: IndiaCentroid.Name},
		}
	}

	span.SetAttributes(attribute.String("geo.place", place.Name))
	return models.Answer{
		Text:    fmt.Sprintf("🗺️ Showing %s on the map.", place.Name),
		Intent:  models.IntentGeo,
		Kind:    models.AnswerKindGeo,
		MapData: &models.MapData{Lat: place.Lat, Lon: place.Lon, Popup: place.Name},
	}
}
