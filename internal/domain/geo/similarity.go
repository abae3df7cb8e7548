// Package geo resolves place names to coordinates and scores how close two places are.
package geo

import (
	"context"
	"math"

	"github.com/okian/affinity/internal/domain/model"
)

// Distance buckets and their scores.
const (
	earthRadiusKm = 6371.0088

	NearDistanceKm   = 50.0
	RegionDistanceKm = 500.0

	ScoreNear        = 1.0
	ScoreRegion      = 0.5
	ScoreSameCountry = 0.8
	ScoreFar         = 0.0
)

// DistanceKm returns the great-circle distance between two places.
func DistanceKm(a, b model.Place) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Similarity buckets the distance between two places. The distance buckets
// win over the country check, so two places 300 km apart in the same
// country score 0.5, not 0.8.
func Similarity(a, b model.Place) float64 {
	d := DistanceKm(a, b)
	switch {
	case d < NearDistanceKm:
		return ScoreNear
	case d < RegionDistanceKm:
		return ScoreRegion
	case a.Country == b.Country:
		return ScoreSameCountry
	default:
		return ScoreFar
	}
}

// PlaceResolver turns a place name into a Place.
type PlaceResolver interface {
	Resolve(ctx context.Context, name string) (model.Place, error)
}

// CityScorer scores two city names by resolving both and bucketing their distance.
type CityScorer struct {
	resolver PlaceResolver
}

// NewCityScorer creates a CityScorer over the given resolver.
func NewCityScorer(resolver PlaceResolver) *CityScorer {
	return &CityScorer{resolver: resolver}
}

// Score resolves both names and returns their geographic similarity.
func (c *CityScorer) Score(ctx context.Context, cityA, cityB string) (float64, error) {
	a, err := c.resolver.Resolve(ctx, cityA)
	if err != nil {
		return 0, err
	}
	b, err := c.resolver.Resolve(ctx, cityB)
	if err != nil {
		return 0, err
	}
	return Similarity(a, b), nil
}
