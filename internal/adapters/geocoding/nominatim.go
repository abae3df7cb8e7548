// Package geocoding resolves place names through a Nominatim endpoint.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/affinity/internal/domain/geo"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

const (
	breakerName    = "nominatim"
	dependencyName = "geocoder"
	maxBodyBytes   = 1 << 20
)

// searchResult is one entry of a Nominatim jsonv2 search response.
type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Client is a rate-limited Nominatim client behind a circuit breaker.
type Client struct {
	baseURL      string
	userAgent    string
	timeout      time.Duration
	ratePerSec   float64
	maxFailures  uint32
	openInterval time.Duration
	http         *http.Client

	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[geo.Geocoded]
	logger  logger.Logger
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		userAgent:    DefaultUserAgent,
		timeout:      defaultTimeout,
		ratePerSec:   defaultRatePerSec,
		maxFailures:  defaultMaxFailures,
		openInterval: defaultOpenInterval,
		http:         &http.Client{},
		logger:       logger.Get().Named("geocoding"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.limiter = rate.NewLimiter(rate.Limit(c.ratePerSec), 1)

	metrics.UpdateBreakerState(breakerName, int(gobreaker.StateClosed))
	c.cb = gobreaker.NewCircuitBreaker[geo.Geocoded](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     c.openInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.maxFailures
		},
		// A name with no match is a healthy answer.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, geo.ErrNoMatch)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, int(to))
		},
	})
	return c
}

// Geocode returns the best match for name, geo.ErrNoMatch when there is
// none, or an error wrapping model.ErrDependency when Nominatim cannot be
// reached.
func (c *Client) Geocode(ctx context.Context, name string) (geo.Geocoded, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	// An open breaker rejects without spending a rate-limit slot.
	if c.cb.State() == gobreaker.StateOpen {
		metrics.RecordDependencyLatency(dependencyName, "rejected", msSince(start))
		return geo.Geocoded{}, fmt.Errorf("%w: %w", model.ErrDependency, gobreaker.ErrOpenState)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordDependencyLatency(dependencyName, "throttled", msSince(start))
		return geo.Geocoded{}, fmt.Errorf("%w: rate limit wait: %w", model.ErrDependency, err)
	}

	g, err := c.cb.Execute(func() (geo.Geocoded, error) {
		return c.search(ctx, name)
	})
	switch {
	case err == nil:
		metrics.RecordDependencyLatency(dependencyName, "ok", msSince(start))
		return g, nil
	case errors.Is(err, geo.ErrNoMatch):
		metrics.RecordDependencyLatency(dependencyName, "no_match", msSince(start))
		return geo.Geocoded{}, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordDependencyLatency(dependencyName, "rejected", msSince(start))
		return geo.Geocoded{}, fmt.Errorf("%w: %w", model.ErrDependency, err)
	default:
		metrics.RecordDependencyLatency(dependencyName, "error", msSince(start))
		return geo.Geocoded{}, err
	}
}

func (c *Client) search(ctx context.Context, name string) (geo.Geocoded, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return geo.Geocoded{}, fmt.Errorf("%w: build request: %w", model.ErrDependency, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Geocoded{}, fmt.Errorf("%w: %w", model.ErrDependency, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return geo.Geocoded{}, fmt.Errorf("%w: nominatim status %d", model.ErrDependency, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&results); err != nil {
		return geo.Geocoded{}, fmt.Errorf("%w: decode response: %w", model.ErrDependency, err)
	}
	if len(results) == 0 {
		return geo.Geocoded{}, fmt.Errorf("%q: %w", name, geo.ErrNoMatch)
	}

	top := results[0]
	lat, err := strconv.ParseFloat(top.Lat, 64)
	if err != nil {
		return geo.Geocoded{}, fmt.Errorf("%w: latitude %q: %w", model.ErrDependency, top.Lat, err)
	}
	lon, err := strconv.ParseFloat(top.Lon, 64)
	if err != nil {
		return geo.Geocoded{}, fmt.Errorf("%w: longitude %q: %w", model.ErrDependency, top.Lon, err)
	}
	return geo.Geocoded{Address: top.DisplayName, Latitude: lat, Longitude: lon}, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
