package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// DefaultCacheTTL is how long a resolved place stays in the cache.
const DefaultCacheTTL = 604800 * time.Second

// Resolution sources, used as metric labels.
const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceGeocoder = "geocoder"
	SourceNotFound = "not_found"
	SourceError    = "error"
)

// PlaceStore is the durable place table.
type PlaceStore interface {
	// FindPlaceByName returns model.ErrNotFound when no row has that exact name.
	FindPlaceByName(ctx context.Context, name string) (model.Place, error)
	// UpsertPlace inserts p unless a row with the same name exists, and
	// returns whichever row is stored.
	UpsertPlace(ctx context.Context, p model.Place) (model.Place, error)
	ListPlaces(ctx context.Context) ([]model.Place, error)
}

// Cache is a TTL key/value store holding serialized places.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Geocoded is a geocoder match.
type Geocoded struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// Geocoder looks up free-text place names.
type Geocoder interface {
	// Geocode returns ErrNoMatch when nothing matches; any other error is a
	// transport failure.
	Geocode(ctx context.Context, name string) (Geocoded, error)
}

// PrimeStats summarizes a cache warm-up.
type PrimeStats struct {
	Loaded int
	Failed int
}

// Resolver implements cache-aside place resolution: cache, then store, then
// geocoder. Concurrent resolutions of the same unseen name share one
// geocoding call, and the store's upsert keeps one row per name across
// processes.
type Resolver struct {
	store    PlaceStore
	cache    Cache
	geocoder Geocoder
	ttl      time.Duration
	newID    func() string
	group    singleflight.Group
	logger   logger.Logger
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(store PlaceStore, cache Cache, geocoder Geocoder, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		cache:    cache,
		geocoder: geocoder,
		ttl:      DefaultCacheTTL,
		newID:    uuid.NewString,
		logger:   logger.Get().Named("geo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the place stored under name, geocoding and persisting it
// on first sight. A name the geocoder cannot match yields model.ErrNotFound;
// a geocoder transport failure yields model.ErrDependency.
func (r *Resolver) Resolve(ctx context.Context, name string) (model.Place, error) {
	if strings.TrimSpace(name) == "" {
		return model.Place{}, fmt.Errorf("resolve place: empty name: %w", model.ErrInvalidInput)
	}

	if p, ok := r.fromCache(ctx, name); ok {
		metrics.RecordPlaceResolution(SourceCache)
		return p, nil
	}

	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		return r.resolveMiss(shared, name)
	})
	if err != nil {
		return model.Place{}, err
	}
	return v.(model.Place), nil
}

func (r *Resolver) resolveMiss(ctx context.Context, name string) (model.Place, error) {
	p, err := r.store.FindPlaceByName(ctx, name)
	switch {
	case err == nil:
		r.toCache(ctx, p)
		metrics.RecordPlaceResolution(SourceStore)
		return p, nil
	case !errors.Is(err, model.ErrNotFound):
		metrics.RecordPlaceResolution(SourceError)
		return model.Place{}, fmt.Errorf("find place %q: %w", name, err)
	}

	start := time.Now()
	g, err := r.geocoder.Geocode(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			metrics.RecordPlaceResolution(SourceNotFound)
			r.logger.Info(ctx, "place not found", logger.String("name", name))
			return model.Place{}, fmt.Errorf("resolve place %q: %w", name, model.ErrNotFound)
		}
		metrics.RecordPlaceResolution(SourceError)
		r.logger.Warn(ctx, "geocoder failed",
			logger.String("name", name),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
		if errors.Is(err, model.ErrDependency) {
			return model.Place{}, fmt.Errorf("geocode %q: %w", name, err)
		}
		return model.Place{}, fmt.Errorf("geocode %q: %w: %w", name, model.ErrDependency, err)
	}

	p, err = r.store.UpsertPlace(ctx, model.Place{
		ID:            r.newID(),
		CanonicalName: name,
		Country:       model.CountryFromAddress(g.Address),
		Latitude:      g.Latitude,
		Longitude:     g.Longitude,
	})
	if err != nil {
		metrics.RecordPlaceResolution(SourceError)
		return model.Place{}, fmt.Errorf("store place %q: %w", name, err)
	}

	r.toCache(ctx, p)
	metrics.RecordPlaceResolution(SourceGeocoder)
	r.logger.Debug(ctx, "place geocoded",
		logger.String("name", name),
		logger.String("country", p.Country),
		logger.Duration("took", time.Since(start)),
	)
	return p, nil
}

// fromCache treats undecodable values and backend errors as misses.
func (r *Resolver) fromCache(ctx context.Context, name string) (model.Place, bool) {
	raw, err := r.cache.Get(ctx, model.PlaceCacheKey(name))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn(ctx, "place cache read failed", logger.String("name", name), logger.Error(err))
		}
		return model.Place{}, false
	}
	var p model.Place
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn(ctx, "undecodable place cache entry", logger.String("name", name), logger.Error(err))
		return model.Place{}, false
	}
	return p, true
}

// toCache never fails the caller; the cache is a projection of the store.
func (r *Resolver) toCache(ctx context.Context, p model.Place) {
	if err := r.writeCache(ctx, p); err != nil {
		metrics.RecordCacheWriteError()
		r.logger.Warn(ctx, "place cache write failed", logger.String("name", p.CanonicalName), logger.Error(err))
	}
}

func (r *Resolver) writeCache(ctx context.Context, p model.Place) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode place: %w", err)
	}
	return r.cache.Set(ctx, model.PlaceCacheKey(p.CanonicalName), raw, r.ttl)
}

// PrimeCache writes every stored place into the cache. It fails fast when
// the cache backend is unreachable; individual write failures are counted
// and skipped. Safe to run repeatedly.
func (r *Resolver) PrimeCache(ctx context.Context) (PrimeStats, error) {
	var stats PrimeStats
	if err := r.cache.Ping(ctx); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}

	places, err := r.store.ListPlaces(ctx)
	if err != nil {
		return stats, fmt.Errorf("list places: %w", err)
	}

	for _, p := range places {
		if err := r.writeCache(ctx, p); err != nil {
			stats.Failed++
			metrics.RecordCachePrimeEntry(false)
			r.logger.Warn(ctx, "prime cache entry failed", logger.String("name", p.CanonicalName), logger.Error(err))
			continue
		}
		stats.Loaded++
		metrics.RecordCachePrimeEntry(true)
	}

	r.logger.Info(ctx, "place cache primed",
		logger.Int("loaded", stats.Loaded),
		logger.Int("failed", stats.Failed),
	)
	return stats, nil
}
