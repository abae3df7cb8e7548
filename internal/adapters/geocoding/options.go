package geocoding

import (
	"net/http"
	"time"

	"github.com/okian/affinity/pkg/logger"
)

// Default client configuration constants.
const (
	DefaultBaseURL      = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "affinity-recommender/1.0"
	defaultTimeout      = 10 * time.Second
	defaultRatePerSec   = 1.0
	defaultMaxFailures  = 5
	defaultOpenInterval = 30 * time.Second
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header Nominatim requires.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout bounds each geocoding call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRatePerSecond caps outgoing requests.
func WithRatePerSecond(r float64) Option {
	return func(c *Client) {
		if r > 0 {
			c.ratePerSec = r
		}
	}
}

// WithMaxConsecutiveFailures sets how many transport failures open the breaker.
func WithMaxConsecutiveFailures(n uint32) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxFailures = n
		}
	}
}

// WithOpenInterval sets how long the breaker stays open.
func WithOpenInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.openInterval = d
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
