package geo

import "errors"

// Sentinel kinds reported by resolver collaborators.
var (
	// ErrCacheMiss is returned by a Cache when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrNoMatch is returned by a Geocoder when the query matches nothing.
	ErrNoMatch = errors.New("geocoder found no match")
	// ErrCacheUnavailable is returned by PrimeCache when the cache backend does not answer.
	ErrCacheUnavailable = errors.New("place cache unavailable")
)
