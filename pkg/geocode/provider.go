package geocode

import (
	"context"
	"net/http"
	"time"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	// Geocode looks up one address. A miss is a Result with Matched=false and
	// a nil error; errors are reserved for transport and protocol failures.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds a provider's answer for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string
	Matched   bool
}

// usable rejects pairs outside WGS84 bounds and the (0,0) placeholder some
// providers return for misses.
func (r *Result) usable() bool {
	if r == nil || !r.Matched {
		return false
	}
	if r.Latitude == 0 && r.Longitude == 0 {
		return false
	}
	return r.Latitude >= -90 && r.Latitude <= 90 && r.Longitude >= -180 && r.Longitude <= 180
}

// ProviderOption configures a provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	httpClient *http.Client
	baseURL    string
	region     string
}

// WithHTTPClient sets a custom HTTP client for provider requests.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(c *providerConfig) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) ProviderOption {
	return func(c *providerConfig) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRegion biases results toward a country (ISO 3166-1 alpha-2).
func WithRegion(region string) ProviderOption {
	return func(c *providerConfig) {
		c.region = region
	}
}

func newProviderConfig(defaultBase string, opts []ProviderOption) providerConfig {
	c := providerConfig{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBase,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
