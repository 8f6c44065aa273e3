// Package httpclient is the resilient request engine shared by every domain service: response
// caching, per-attempt timeouts, retry with exponential backoff and a three-kind error taxonomy.
package httpclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/cache"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/metrics"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
)

// HTTPDoer is satisfied by *http.Client and by test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client owns its cache; two clients never share entries unless they share a Store.
type Client struct {
	baseURL   string
	baseMu    sync.RWMutex
	http      HTTPDoer
	store     cache.Store
	cacheTTL  time.Duration
	defaults  RequestConfig
	baseDelay time.Duration
	limiter   *rate.Limiter
	breaker   *util.CircuitBreaker
	recorder  metrics.Recorder
	logger    *zap.Logger
	flight    singleflight.Group
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the transport. Timeouts are enforced per attempt through the request
// context, so the doer itself should not impose a shorter one.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

func WithStore(store cache.Store) Option {
	return func(c *Client) { c.store = store }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithDefaults sets the service-level RequestConfig every call is merged onto.
func WithDefaults(cfg RequestConfig) Option {
	return func(c *Client) { c.defaults = c.defaults.Merge(cfg) }
}

// WithBaseDelay sets the backoff unit; attempt i+1 waits 2^i × d.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithRateLimit caps outgoing attempts at rps with the given burst. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCircuitBreaker(cb *util.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = util.OrNop(logger) }
}

// WithSleeper replaces the backoff wait. Intended for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithClock replaces the time source used for cache entries. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		store:     cache.NewMemoryStore(),
		cacheTTL:  constants.RequestDefaults.CacheTTL,
		defaults:  DefaultRequestConfig(),
		baseDelay: constants.RequestDefaults.BaseDelay,
		recorder:  metrics.Noop(),
		logger:    zap.NewNop(),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	c.baseMu.RLock()
	defer c.baseMu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at another backend and drops every entry cached for the old one.
func (c *Client) SetBaseURL(ctx context.Context, baseURL string) error {
	c.baseMu.Lock()
	old := c.baseURL
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.baseMu.Unlock()

	if old == "" || old == c.BaseURL() {
		return nil
	}
	_, err := c.ClearCache(ctx, old)
	return err
}

// ClearCache removes cached responses whose key contains pattern, or all of them when pattern
// is empty.
func (c *Client) ClearCache(ctx context.Context, pattern string) (int, error) {
	removed, err := c.store.Clear(ctx, pattern)
	if err != nil {
		c.logger.Warn("Cache clear failed", zap.String("pattern", pattern), zap.Error(err))
		return removed, err
	}
	c.logger.Debug("Cache cleared", zap.String("pattern", pattern), zap.Int("removed", removed))
	return removed, nil
}

// Close releases the cache store.
func (c *Client) Close() error {
	return c.store.Close()
}

func (c *Client) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.BaseURL() + endpoint
}

func (c *Client) backoff(retry int) time.Duration {
	if retry > 10 {
		retry = 10
	}
	return c.baseDelay * time.Duration(1<<retry)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
