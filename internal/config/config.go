// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path" validate:"required"`

	// CacheDir holds the place cache; empty keeps it in memory.
	CacheDir string `koanf:"cache_dir"`

	// CacheTTLSeconds is how long a resolved place stays cached.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" validate:"gt=0"`

	// FanOutWorkers caps concurrent candidate scorings per ranking.
	FanOutWorkers int `koanf:"fanout_workers" validate:"gte=1,lte=256"`

	// TopK is the size of a live ranking.
	TopK int `koanf:"top_k" validate:"gte=1,lte=1000"`

	// StoredLimit is the default number of stored recommendations returned.
	StoredLimit int `koanf:"stored_limit" validate:"gte=1,lte=1000"`

	// SimilarityWeights maps factor names to weights; they must sum to 1.
	SimilarityWeights map[string]float64 `koanf:"similarity_weights" validate:"dive,keys,oneof=city profession age experience description,endkeys,gte=0,lte=1"` //nolint:lll // validator tag

	// GeocoderURL is the Nominatim base URL.
	GeocoderURL string `koanf:"geocoder_url" validate:"required,url"`

	// GeocoderUserAgent identifies this service to Nominatim.
	GeocoderUserAgent string `koanf:"geocoder_user_agent" validate:"required"`

	// GeocoderTimeoutMS bounds one geocoding call.
	GeocoderTimeoutMS int `koanf:"geocoder_timeout_ms" validate:"gt=0"`

	// GeocoderRatePerSec limits outgoing geocoding requests.
	GeocoderRatePerSec float64 `koanf:"geocoder_rate_per_sec" validate:"gt=0"`

	// GeocoderBreakerFailures opens the geocoder breaker after that many consecutive failures.
	GeocoderBreakerFailures int `koanf:"geocoder_breaker_failures" validate:"gte=1"`

	// TranslatorAPIKey enables Gemini translation when set.
	TranslatorAPIKey string `koanf:"translator_api_key"`

	// TranslatorModel is the Gemini model used for translation.
	TranslatorModel string `koanf:"translator_model" validate:"required"`

	// TranslatorTimeoutMS bounds one translation call.
	TranslatorTimeoutMS int `koanf:"translator_timeout_ms" validate:"gt=0"`

	// DetectorRequireReliable treats low-confidence language guesses as undetected.
	DetectorRequireReliable bool `koanf:"detector_require_reliable"`

	// PrimeCacheOnStart loads every stored place into the cache at startup.
	PrimeCacheOnStart bool `koanf:"prime_cache_on_start"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		DBPath:          "affinity.db",
		CacheDir:        "",
		CacheTTLSeconds: 604800,
		FanOutWorkers:   10,
		TopK:            10,
		StoredLimit:     5,
		SimilarityWeights: map[string]float64{
			"city":        0.2,
			"profession":  0.3,
			"age":         0.2,
			"experience":  0.1,
			"description": 0.2,
		},
		GeocoderURL:             "https://nominatim.openstreetmap.org",
		GeocoderUserAgent:       "affinity-recommender/1.0",
		GeocoderTimeoutMS:       10_000,
		GeocoderRatePerSec:      1,
		GeocoderBreakerFailures: 5,
		TranslatorModel:         "gemini-2.5-flash",
		TranslatorTimeoutMS:     15_000,
		PrimeCacheOnStart:       true,
	}
	return c
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// GeocoderTimeout returns GeocoderTimeoutMS as a duration.
func (c *Config) GeocoderTimeout() time.Duration {
	return time.Duration(c.GeocoderTimeoutMS) * time.Millisecond
}

// TranslatorTimeout returns TranslatorTimeoutMS as a duration.
func (c *Config) TranslatorTimeout() time.Duration {
	return time.Duration(c.TranslatorTimeoutMS) * time.Millisecond
}
