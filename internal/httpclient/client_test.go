package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/cache"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
	"github.com/RobiinJonsson/marketdata-dashboard-go/pkg/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// recordingSleeper captures backoff delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type failingDoer struct {
	calls atomic.Int32
	err   error
}

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return nil, f.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *recordingSleeper) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sleeper := &recordingSleeper{}
	base := []Option{WithSleeper(sleeper.Sleep)}
	return New(srv.URL+"/api/v1", append(base, opts...)...), sleeper
}

func TestRequest_CachesSuccessfulGet(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"isin":"US0378331005","full_name":"Apple Inc"}`)
	})

	ctx := context.Background()
	first, err := client.Get(ctx, "/instruments/US0378331005")
	require.NoError(t, err)
	second, err := client.Get(ctx, "/instruments/US0378331005")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, StatusSuccess, first.Status)
	assert.JSONEq(t, `{"isin":"US0378331005","full_name":"Apple Inc"}`, string(first.Data))
}

func TestRequest_CacheEntryExpires(t *testing.T) {
	clock := newFakeClock()
	store := cache.NewMemoryStore().WithClock(clock.Now)

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `[]`)
	}, WithStore(store), WithClock(clock.Now), WithCacheTTL(300000*time.Millisecond))

	ctx := context.Background()
	_, err := client.Get(ctx, "/venues")
	require.NoError(t, err)

	clock.Advance(299999 * time.Millisecond)
	_, err = client.Get(ctx, "/venues")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	clock.Advance(time.Millisecond)
	_, err = client.Get(ctx, "/venues")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRequest_CacheDisabledPerCall(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"status":"success","data":[]}`)
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.Get(ctx, "/venues", WithCache(false))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestRequest_PostNotCachedByDefault(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"name":"x"}`, string(body))
		fmt.Fprint(w, `{"ok":true}`)
	})

	ctx := context.Background()
	_, err := client.Post(ctx, "/legal-entities", map[string]string{"name": "x"})
	require.NoError(t, err)
	_, err = client.Post(ctx, "/legal-entities", map[string]string{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRequest_RetriesServerErrorsUntilSuccess(t *testing.T) {
	for failures := 0; failures <= 3; failures++ {
		t.Run(fmt.Sprintf("%d failures", failures), func(t *testing.T) {
			var hits atomic.Int32
			client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if int(hits.Add(1)) <= failures {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				fmt.Fprint(w, `{"status":"success","data":{"ok":true}}`)
			})

			env, err := client.Get(context.Background(), "/instruments/X")
			require.NoError(t, err)
			assert.True(t, env.OK())
			assert.Equal(t, int32(failures+1), hits.Load())

			expected := []time.Duration{}
			for i := 0; i < failures; i++ {
				expected = append(expected, time.Second<<i)
			}
			assert.Equal(t, expected, append([]time.Duration{}, sleeper.Delays()...))
		})
	}
}

func TestRequest_GivesUpAfterRetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"database unavailable"}`)
	})

	_, err := client.Get(context.Background(), "/instruments/X")
	require.Error(t, err)
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.Delays())

	httpErr, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindHTTPStatus, httpErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, "database unavailable", httpErr.Message)
}

func TestRequest_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"instrument not found"}`)
	})

	_, err := client.Get(context.Background(), "/instruments/X", WithRetries(3))
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, sleeper.Delays())

	httpErr, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindHTTPStatus, httpErr.Kind)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "instrument not found", httpErr.Message)
	assert.Equal(t, map[string]any{"error": "instrument not found"}, httpErr.Details)
}

func TestRequest_StatusTextFallback(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "plain text failure")
	})

	_, err := client.Get(context.Background(), "/instruments")
	httpErr, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, "HTTP 400: Bad Request", httpErr.Message)
	assert.Equal(t, "plain text failure", httpErr.Details)
}

func TestRequest_TimeoutIsReportedAndNotRetried(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	start := time.Now()
	_, err := client.Get(context.Background(), "/instruments/X", WithTimeout(100*time.Millisecond))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTimeout))
	assert.Less(t, elapsed, 2*time.Second)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, sleeper.Delays())

	httpErr, _ := errors.AsHTTPError(err)
	assert.Equal(t, "request timed out after 100ms", httpErr.Message)
}

func TestRequest_NetworkErrorIsRetried(t *testing.T) {
	doer := &failingDoer{err: fmt.Errorf("dial tcp: connection refused")}
	sleeper := &recordingSleeper{}
	client := New("http://refdata.invalid", WithHTTPClient(doer), WithSleeper(sleeper.Sleep))

	_, err := client.Get(context.Background(), "/venues", WithRetries(2))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	assert.Equal(t, int32(3), doer.calls.Load())
	assert.Len(t, sleeper.Delays(), 2)
}

func TestRequest_CancelledContextStopsRetrying(t *testing.T) {
	doer := &failingDoer{err: fmt.Errorf("connection reset")}
	client := New("http://refdata.invalid", WithHTTPClient(doer))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "/venues", WithCache(false))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	assert.Equal(t, int32(1), doer.calls.Load())
}

func TestRequest_MalformedJSONIsNetworkError(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"isin": `)
	})

	_, err := client.Get(context.Background(), "/instruments/X")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	assert.Equal(t, int32(1), hits.Load())

	// failures are never cached
	_, err = client.Get(context.Background(), "/instruments/X")
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRequest_SanitizesNonFiniteNumbers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"T1","average_daily_turnover":NaN,"large_in_scale":Infinity,"note":"NaN stays"}]`)
	})

	records, err := Fetch[[]map[string]any](context.Background(), client, "/transparency/isin/X")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0]["average_daily_turnover"])
	assert.Nil(t, records[0]["large_in_scale"])
	assert.Equal(t, "NaN stays", records[0]["note"])
}

func TestRequest_EmptyBodyNormalizesToNullData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	env, err := client.Delete(context.Background(), "/legal-entities/X")
	require.NoError(t, err)
	assert.True(t, env.OK())
	assert.False(t, env.HasData())
}

func TestRequest_SendsRequestHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "yes", r.Header.Get("X-Trace"))
		fmt.Fprint(w, `{}`)
	})

	_, err := client.Get(context.Background(), "/venues", WithHeader("X-Trace", "yes"))
	require.NoError(t, err)
	_, hasTrace := client.defaults.Headers["X-Trace"]
	assert.False(t, hasTrace)
}

func TestRequest_ConcurrentIdenticalRequestsShareOneRoundTrip(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		fmt.Fprint(w, `{"status":"success","data":{"mic":"XNAS"}}`)
	})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), "/venues/XNAS")
			errs <- err
		}()
	}

	// let the callers pile up behind the first round trip
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequest_CircuitBreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	breaker := util.NewCircuitBreaker("refdata", 2, time.Minute, nil)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithCircuitBreaker(breaker))

	_, err := client.Get(context.Background(), "/venues", WithRetries(5))
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())

	httpErr, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindNetwork, httpErr.Kind)
	assert.Equal(t, "circuit breaker open", httpErr.Message)
	assert.Equal(t, util.CircuitStateOpen, breaker.Status().State)
}

func TestClearCache_RemovesMatchingEntries(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{}`)
	})

	ctx := context.Background()
	_, _ = client.Get(ctx, "/instruments/A")
	_, _ = client.Get(ctx, "/venues/XNAS")
	require.Equal(t, int32(2), hits.Load())

	removed, err := client.ClearCache(ctx, "/instruments")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, _ = client.Get(ctx, "/instruments/A")
	_, _ = client.Get(ctx, "/venues/XNAS")
	assert.Equal(t, int32(3), hits.Load())

	removed, err = client.ClearCache(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestSetBaseURL_DropsEntriesForOldBackend(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{}`)
	})

	ctx := context.Background()
	old := client.BaseURL()
	_, _ = client.Get(ctx, "/venues")

	require.NoError(t, client.SetBaseURL(ctx, old+"/"))
	_, _ = client.Get(ctx, "/venues")
	assert.Equal(t, int32(1), hits.Load(), "trailing slash is the same backend")

	require.NoError(t, client.SetBaseURL(ctx, "http://other.invalid/api/v1"))
	require.NoError(t, client.SetBaseURL(ctx, old))
	_, _ = client.Get(ctx, "/venues")
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_DecodesTypedPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"mic":"XNAS","name":"Nasdaq"}}`)
	})

	type venue struct {
		MIC  string `json:"mic"`
		Name string `json:"name"`
	}
	v, err := Fetch[venue](context.Background(), client, "/venues/XNAS")
	require.NoError(t, err)
	assert.Equal(t, venue{MIC: "XNAS", Name: "Nasdaq"}, v)
}

func TestFetch_FailedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","error":"upstream unavailable"}`)
	})

	_, err := Fetch[map[string]any](context.Background(), client, "/venues/XNAS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "/instruments/US0378331005", Endpoint("/instruments/%s", nil, "US0378331005"))
	assert.Equal(t, "/venues/a%2Fb", Endpoint("/venues/%s", nil, "a/b"))

	params := map[string][]string{"type": {"equity"}, "currency": {""}, "limit": {"10"}}
	assert.Equal(t, "/instruments?limit=10&type=equity", Endpoint("/instruments", params))
}

func TestEncodeBody(t *testing.T) {
	raw, err := encodeBody(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))

	raw, err = encodeBody(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = encodeBody(make(chan int))
	assert.Error(t, err)
}

func TestRequest_SharedFlightSurvivesFirstCallerCancelling(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	var release sync.Once
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
		fmt.Fprint(w, `{"status":"success","data":{"mic":"XSTO"}}`)
	})
	t.Cleanup(func() { release.Do(func() { close(gate) }) })

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.Get(firstCtx, "/venues/XSTO")
		firstErr <- err
	}()
	<-started

	type outcome struct {
		env *Envelope
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		env, err := client.Get(context.Background(), "/venues/XSTO")
		second <- outcome{env, err}
	}()

	// let the second caller join the in-flight round trip
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	err := <-firstErr
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNetwork))

	release.Do(func() { close(gate) })
	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.env.HasData())
	assert.Equal(t, int32(1), hits.Load())

	// the detached round trip still populated the cache
	_, err = client.Get(context.Background(), "/venues/XSTO")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequest_DifferentCallSettingsDoNotShareAFlight(t *testing.T) {
	assert.NotEqual(t,
		flightKey("GET /x", RequestConfig{Timeout: time.Second, Retries: Int(0)}),
		flightKey("GET /x", RequestConfig{Timeout: time.Second, Retries: Int(3)}),
	)
	assert.Equal(t,
		flightKey("GET /x", RequestConfig{Timeout: time.Second, Retries: Int(1), Headers: map[string]string{"a": "1", "B": "2"}}),
		flightKey("GET /x", RequestConfig{Timeout: time.Second, Retries: Int(1), Headers: map[string]string{"B": "2", "a": "1"}}),
	)
}

func TestRequest_RateLimitDeadlineLeavesBreakerUntouched(t *testing.T) {
	clock := newFakeClock()
	breaker := util.NewCircuitBreaker("refdata", 1, time.Minute, nil).WithClock(clock.Now)

	var healthy atomic.Bool
	var hits atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"success","data":[]}`)
	}
	limited, _ := newTestClient(t, handler, WithCircuitBreaker(breaker), WithRateLimit(0.001, 1))

	// one failure opens the breaker and spends the only token
	_, err := limited.Get(context.Background(), "/venues", WithRetries(0), WithCache(false))
	require.Error(t, err)
	require.Equal(t, util.CircuitStateOpen, breaker.Status().State)

	clock.Advance(2 * time.Minute)
	healthy.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = limited.Get(ctx, "/venues", WithRetries(0), WithCache(false))
	require.Error(t, err)

	httpErr, ok := errors.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindTimeout, httpErr.Kind)
	assert.Equal(t, "rate_limit_deadline", httpErr.Details.(map[string]any)["reason"])
	assert.NotContains(t, httpErr.Message, "timed out after")
	assert.Equal(t, int32(1), hits.Load())

	// the half-open probe slot is still available to the next caller
	unlimited, _ := newTestClient(t, handler, WithCircuitBreaker(breaker))
	_, err = unlimited.Get(context.Background(), "/venues", WithRetries(0), WithCache(false))
	require.NoError(t, err)
	assert.Equal(t, util.CircuitStateClosed, breaker.Status().State)
}
