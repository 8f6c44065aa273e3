package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/cache"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/metrics"
	"github.com/RobiinJonsson/marketdata-dashboard-go/pkg/errors"
)

// Request performs one logical call. Cacheable requests are answered from the cache while the
// entry is live; everything else goes through the retry loop. Every error is an *errors.HTTPError.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Envelope, error) {
	method = strings.ToUpper(method)

	// Merge copies the header map so per-call options never touch the defaults.
	cfg := c.defaults.Merge(RequestConfig{})
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.resolve(method)

	payload, err := encodeBody(body)
	if err != nil {
		return nil, errors.NewNetworkError("request body could not be encoded", map[string]any{"method": method}, err)
	}

	reqURL := c.resolveURL(endpoint)
	if !cfg.cacheable() {
		normalized, err := c.execute(ctx, method, reqURL, payload, cfg)
		if err != nil {
			return nil, err
		}
		return toEnvelope(normalized)
	}

	key := cache.Key(method, reqURL, payload)
	if normalized, ok := c.lookup(ctx, key); ok {
		c.recorder.IncCache(true)
		c.recorder.IncRequest(method, metrics.OutcomeCached)
		c.logger.Debug("Cache hit", zap.String("key", key))
		return toEnvelope(normalized)
	}
	c.recorder.IncCache(false)

	// Identical in-flight requests share one round trip. The flight is detached from every
	// caller's cancellation; each attempt is still bounded by cfg.Timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey(key, cfg), func() (any, error) {
		if normalized, ok := c.lookup(flightCtx, key); ok {
			return normalized, nil
		}
		normalized, err := c.execute(flightCtx, method, reqURL, payload, cfg)
		if err != nil {
			return nil, err
		}
		entry := &cache.Entry{
			Key:      key,
			Payload:  normalized,
			StoredAt: c.now(),
			TTL:      c.cacheTTL,
		}
		if err := c.store.Set(flightCtx, entry); err != nil {
			c.logger.Warn("Cache store failed", zap.String("key", key), zap.Error(err))
		}
		return normalized, nil
	})

	select {
	case <-ctx.Done():
		return nil, contextError(ctx, cfg.Timeout)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return toEnvelope(res.Val.([]byte))
	}
}

func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Envelope, error) {
	return c.Request(ctx, http.MethodGet, endpoint, nil, opts...)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Envelope, error) {
	return c.Request(ctx, http.MethodPost, endpoint, body, opts...)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Envelope, error) {
	return c.Request(ctx, http.MethodPut, endpoint, body, opts...)
}

func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*Envelope, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, opts...)
}

// Fetch performs a GET and decodes the envelope's data as T.
func Fetch[T any](ctx context.Context, c *Client, endpoint string, opts ...RequestOption) (T, error) {
	env, err := c.Get(ctx, endpoint, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](env)
}

// Endpoint formats a path template and appends the non-empty query parameters.
func Endpoint(template string, params url.Values, args ...any) string {
	path := template
	if len(args) > 0 {
		escaped := make([]any, len(args))
		for i, arg := range args {
			escaped[i] = url.PathEscape(fmt.Sprint(arg))
		}
		path = fmt.Sprintf(template, escaped...)
	}

	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				query.Add(k, v)
			}
		}
	}
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// lookup returns a live cached payload. Store failures degrade to a miss.
func (c *Client) lookup(ctx context.Context, key string) ([]byte, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok || !entry.Valid(c.now()) {
		return nil, false
	}
	return entry.Payload, true
}

// execute runs the retry loop: attempt i+1 follows a 2^i × baseDelay pause and only 5xx or
// transport failures are tried again.
func (c *Client) execute(ctx context.Context, method, reqURL string, payload []byte, cfg RequestConfig) ([]byte, error) {
	done := metrics.TimeRequest(c.recorder, method)
	retries := cfg.retries()

	var lastErr *errors.HTTPError
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.recorder.IncRetry(method)
			c.logger.Warn("Request failed, retrying",
				zap.String("method", method),
				zap.String("url", reqURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				lastErr = contextError(ctx, cfg.Timeout)
				break
			}
		}

		// Limiter before breaker: an abandoned wait must never hold the half-open probe slot.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					lastErr = contextError(ctx, cfg.Timeout)
				} else {
					// Wait fails early when the deadline cannot accommodate the next token.
					lastErr = errors.NewRateLimitError(err)
				}
				break
			}
		}

		if ok, retryAfter := c.breaker.Allow(); !ok {
			c.logger.Warn("Circuit breaker is open", zap.Int64("retry_after_ms", retryAfter.Milliseconds()))
			lastErr = errors.NewNetworkError("circuit breaker open", map[string]any{
				"retry_after_ms": retryAfter.Milliseconds(),
			}, nil)
			break
		}

		normalized, err, retryable := c.attempt(ctx, method, reqURL, payload, cfg)
		if err == nil {
			c.breaker.RecordSuccess()
			done(metrics.OutcomeSuccess)
			return normalized, nil
		}
		lastErr = err

		if err.Kind == errors.KindHTTPStatus && err.Status < 500 {
			c.breaker.RecordSuccess()
		} else {
			c.breaker.RecordFailure()
		}

		if !retryable || ctx.Err() != nil {
			break
		}
	}

	done(lastErr.Kind.String())
	c.logger.Debug("Request failed",
		zap.String("method", method),
		zap.String("url", reqURL),
		zap.String("kind", lastErr.Kind.String()),
		zap.Int("status", lastErr.Status),
	)
	return nil, lastErr
}

// attempt performs a single round trip under its own timeout and returns the normalized body.
// The boolean reports whether the failure may be retried.
func (c *Client) attempt(ctx context.Context, method, reqURL string, payload []byte, cfg RequestConfig) ([]byte, *errors.HTTPError, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, reqURL, reader)
	if err != nil {
		return nil, errors.NewNetworkError("invalid request", map[string]any{"url": reqURL}, err), false
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", constants.APIConfig.UserAgent)
	}
	req.Header.Set(constants.APIConfig.RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		httpErr, retryable := transportError(ctx, attemptCtx, cfg.Timeout, reqURL, err)
		return nil, httpErr, retryable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		httpErr, retryable := transportError(ctx, attemptCtx, cfg.Timeout, reqURL, err)
		return nil, httpErr, retryable
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw), resp.StatusCode >= 500
	}

	normalized, err := normalizeBody(raw)
	if err != nil {
		return nil, errors.NewNetworkError("malformed JSON response", map[string]any{
			"url":    reqURL,
			"status": resp.StatusCode,
		}, err), false
	}
	return normalized, nil, false
}

// normalizeBody sanitizes non-finite numbers only when the body does not already parse, then
// wraps it into an envelope.
func normalizeBody(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return NormalizeEnvelope(nil)
	}
	if !json.Valid(raw) {
		raw = SanitizeNonFinite(raw)
		if !json.Valid(raw) {
			return nil, fmt.Errorf("response is not valid JSON")
		}
	}
	return NormalizeEnvelope(raw)
}

func toEnvelope(normalized []byte) (*Envelope, error) {
	env, err := parseEnvelope(normalized)
	if err != nil {
		return nil, errors.NewNetworkError("malformed response envelope", nil, err)
	}
	return env, nil
}

// transportError classifies a failed round trip. Only failures not caused by a deadline or a
// cancelled caller are retryable.
func transportError(parent, attemptCtx context.Context, timeout time.Duration, reqURL string, err error) (*errors.HTTPError, bool) {
	if parent.Err() != nil {
		return contextError(parent, timeout), false
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError(timeout, err), false
	}
	return errors.NewNetworkError(err.Error(), map[string]any{"url": reqURL}, err), true
}

func contextError(ctx context.Context, timeout time.Duration) *errors.HTTPError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError(timeout, ctx.Err())
	}
	return errors.NewNetworkError("request cancelled", nil, ctx.Err())
}

// statusError builds an HttpStatusError, preferring the backend's own message or error text.
func statusError(status int, raw []byte) *errors.HTTPError {
	message := fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))

	var details any
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 {
		var parsed any
		if err := json.Unmarshal(SanitizeNonFinite(trimmed), &parsed); err == nil {
			details = parsed
			if obj, ok := parsed.(map[string]any); ok {
				if s, ok := obj["message"].(string); ok && s != "" {
					message = s
				} else if s, ok := obj["error"].(string); ok && s != "" {
					message = s
				}
			}
		} else {
			details = string(trimmed)
		}
	}

	return errors.NewHTTPStatusError(status, message, details)
}

// flightKey extends the cache key with the call's settings so callers only share a round trip
// when they would have issued the same one.
func flightKey(key string, cfg RequestConfig) string {
	var b strings.Builder
	b.WriteString(key)
	fmt.Fprintf(&b, "|%d|%d", cfg.Timeout.Milliseconds(), cfg.retries())

	names := make([]string, 0, len(cfg.Headers))
	for name := range cfg.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "|%s=%s", http.CanonicalHeaderKey(name), cfg.Headers[name])
	}
	return b.String()
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(b)
	}
}
