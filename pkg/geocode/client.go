// Package geocode resolves postal addresses to coordinates through an external
// provider, caching every answer for the life of the process.
package geocode

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rostermap/internal/resilience"
)

// Resolver turns an address into coordinates.
type Resolver interface {
	// Resolve returns the coordinates for address. Failures are
	// *ResolutionError values. The returned Resolution's Requested field is
	// meaningful even when err != nil.
	Resolve(ctx context.Context, address string) (Resolution, error)
}

// Resolution is the outcome of a Resolve call.
type Resolution struct {
	Latitude  float64
	Longitude float64
	Source    string
	// Requested is true when the call went out to the provider, false when it
	// was answered from the cache or short-circuited.
	Requested bool
}

// Stats summarizes cache effectiveness.
type Stats struct {
	Hits     int64  `json:"hits"`
	Requests int64  `json:"requests"`
	Matched  int    `json:"matched"`
	Failed   int    `json:"failed"`
	Circuit  string `json:"circuit"`
}

// Option configures the Client.
type Option func(*Client)

// WithRateLimit caps outbound provider requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithLimiter sets the limiter directly.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithCircuitBreaker guards the provider with a breaker built from cfg. Every
// provider failure except caller cancellation counts toward tripping it, so
// a bad key stops outbound traffic as surely as an outage does.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) {
		cfg.ShouldTrip = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("geocode: circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// Client resolves addresses through a Provider with a process-lifetime cache.
// Matches, NoMatch and Rejected answers are cached; Transport failures are
// not, so the next sync cycle tries again.
type Client struct {
	provider Provider
	cache    *memoryCache
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker

	hits     atomic.Int64
	requests atomic.Int64
}

var _ Resolver = (*Client)(nil)

// NewClient creates a caching Client around provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		cache:    newMemoryCache(),
		limiter:  rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		WithCircuitBreaker(resilience.DefaultCircuitBreakerConfig())(c)
	}
	return c
}

// Resolve implements Resolver.
func (c *Client) Resolve(ctx context.Context, address string) (Resolution, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return Resolution{}, &ResolutionError{Kind: NotApplicable, Address: address}
	}

	key := cacheKey(addr)
	if e, ok := c.cache.get(key); ok {
		c.hits.Add(1)
		if e.failure != nil {
			return Resolution{Source: e.res.Source}, e.failure
		}
		return e.res, nil
	}

	if c.breaker.State() == resilience.CircuitOpen {
		return Resolution{Source: c.provider.Name()},
			&ResolutionError{Kind: Transport, Address: addr, Err: resilience.ErrCircuitOpen}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Resolution{}, &ResolutionError{Kind: Transport, Address: addr, Err: eris.Wrap(err, "geocode: rate limit")}
	}

	c.requests.Add(1)
	result, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Result, error) {
		return c.provider.Geocode(ctx, addr)
	})
	if err != nil {
		requested := !eris.Is(err, resilience.ErrCircuitOpen)
		kind := Transport
		if requested && ctx.Err() == nil && !resilience.IsTransient(err) {
			kind = Rejected
		}
		zap.L().Warn("geocode: provider failed",
			zap.String("provider", c.provider.Name()),
			zap.String("address", addr),
			zap.String("kind", string(kind)),
			zap.Bool("requested", requested),
			zap.Error(err),
		)
		failure := &ResolutionError{Kind: kind, Address: addr, Err: err}
		if kind == Rejected {
			c.cache.put(key, cacheEntry{res: Resolution{Source: c.provider.Name()}, failure: failure})
		}
		return Resolution{Source: c.provider.Name(), Requested: requested}, failure
	}

	if !result.usable() {
		failure := &ResolutionError{Kind: NoMatch, Address: addr}
		c.cache.put(key, cacheEntry{res: Resolution{Source: c.provider.Name()}, failure: failure})
		zap.L().Info("geocode: no match", zap.String("provider", c.provider.Name()), zap.String("address", addr))
		return Resolution{Source: c.provider.Name(), Requested: true}, failure
	}

	res := Resolution{
		Latitude:  result.Latitude,
		Longitude: result.Longitude,
		Source:    result.Source,
	}
	c.cache.put(key, cacheEntry{res: res})

	res.Requested = true
	return res, nil
}

// Forget drops the cached answer for address so the next Resolve asks the
// provider again. It reports whether an entry existed.
func (c *Client) Forget(address string) bool {
	return c.cache.delete(cacheKey(strings.TrimSpace(address)))
}

// Stats returns cache counters.
func (c *Client) Stats() Stats {
	matched, failed := c.cache.counts()
	return Stats{
		Hits:     c.hits.Load(),
		Requests: c.requests.Load(),
		Matched:  matched,
		Failed:   failed,
		Circuit:  c.breaker.State().String(),
	}
}
