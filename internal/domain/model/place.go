// Package model contains domain models passed between layers.
package model

import "strings"

// PlaceCacheKeyPrefix namespaces place entries in the cache.
const PlaceCacheKeyPrefix = "place:"

// Place is a resolved geographic location. Rows are immutable once stored
// and CanonicalName is unique across the store.
type Place struct {
	ID            string  `json:"id"`
	CanonicalName string  `json:"canonical_name"`
	Country       string  `json:"country"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// PlaceCacheKey returns the cache key for a place name. Names are matched exactly.
func PlaceCacheKey(name string) string {
	return PlaceCacheKeyPrefix + name
}

// CountryFromAddress extracts the country from a geocoder formatted address:
// the last comma-separated segment, trimmed.
func CountryFromAddress(address string) string {
	idx := strings.LastIndex(address, ",")
	return strings.TrimSpace(address[idx+1:])
}
