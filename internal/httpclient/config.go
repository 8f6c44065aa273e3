package httpclient

import (
	"net/http"
	"time"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
)

// RequestConfig is per-call configuration. Zero Timeout and nil Retries/Cache mean "inherit".
type RequestConfig struct {
	Timeout time.Duration
	Retries *int
	Cache   *bool
	Headers map[string]string
}

// DefaultRequestConfig returns the service-level defaults. Cache is left unset so it
// resolves per method.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		Timeout: constants.RequestDefaults.Timeout,
		Retries: Int(constants.RequestDefaults.Retries),
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}
}

// Merge layers override on top of c; values set in override win. Headers are merged key by key.
func (c RequestConfig) Merge(override RequestConfig) RequestConfig {
	merged := RequestConfig{
		Timeout: c.Timeout,
		Retries: c.Retries,
		Cache:   c.Cache,
	}
	if override.Timeout > 0 {
		merged.Timeout = override.Timeout
	}
	if override.Retries != nil {
		merged.Retries = override.Retries
	}
	if override.Cache != nil {
		merged.Cache = override.Cache
	}

	if len(c.Headers)+len(override.Headers) > 0 {
		merged.Headers = make(map[string]string, len(c.Headers)+len(override.Headers))
		for k, v := range c.Headers {
			merged.Headers[k] = v
		}
		for k, v := range override.Headers {
			merged.Headers[k] = v
		}
	}
	return merged
}

// resolve fills every remaining gap so the engine never reads a nil field.
func (c RequestConfig) resolve(method string) RequestConfig {
	if c.Timeout <= 0 {
		c.Timeout = constants.RequestDefaults.Timeout
	}
	if c.Retries == nil || *c.Retries < 0 {
		c.Retries = Int(constants.RequestDefaults.Retries)
	}
	if c.Cache == nil {
		c.Cache = Bool(method == http.MethodGet)
	}
	return c
}

func (c RequestConfig) retries() int { return *c.Retries }
func (c RequestConfig) cacheable() bool { return *c.Cache }

// RequestOption adjusts a single call.
type RequestOption func(*RequestConfig)

func WithTimeout(d time.Duration) RequestOption {
	return func(c *RequestConfig) { c.Timeout = d }
}

func WithRetries(n int) RequestOption {
	return func(c *RequestConfig) { c.Retries = Int(n) }
}

func WithCache(enabled bool) RequestOption {
	return func(c *RequestConfig) { c.Cache = Bool(enabled) }
}

func WithHeader(key, value string) RequestOption {
	return func(c *RequestConfig) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[key] = value
	}
}

// WithConfig merges a whole RequestConfig, typically an adapter's defaults.
func WithConfig(cfg RequestConfig) RequestOption {
	return func(c *RequestConfig) { *c = c.Merge(cfg) }
}

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
